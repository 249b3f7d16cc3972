package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/db/models"
)

type deadLetters interface {
	Recent(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
	RequeueTx(tx *gorm.DB, eventID uuid.UUID) error
}

// printDeadLetters writes the newest DLQ entries as an aligned table.
func printDeadLetters(ctx context.Context, w io.Writer, dlq deadLetters, limit int) error {
	rows, err := dlq.Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("list dead letters: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT ID\tTYPE\tREASON\tATTEMPTS\tFAILED AT\tERROR")
	for _, row := range rows {
		msg := ""
		if row.ErrorMessage != nil {
			msg = *row.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			row.EventID, row.EventType, row.ErrorReason, row.AttemptCount, row.FailedAt.UTC().Format(time.RFC3339), msg)
	}
	return tw.Flush()
}

func requeueDeadLetter(ctx context.Context, db store, dlq deadLetters, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("requeue: %w", err)
	}
	if err := db.WithTx(ctx, func(tx *gorm.DB) error { return dlq.RequeueTx(tx, id) }); err != nil {
		return fmt.Errorf("requeue %s: %w", id, err)
	}
	return nil
}
