// Package instance names the running process in logs.
package instance

import (
	"os"
	"strconv"
	"sync"
)

// ID is HOMECHEF_INSTANCE_ID when set, otherwise hostname-pid. It is computed once.
var ID = sync.OnceValue(func() string {
	if id := os.Getenv("HOMECHEF_INSTANCE_ID"); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "homechef"
	}
	return host + "-" + strconv.Itoa(os.Getpid())
})
