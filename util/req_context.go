package util

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ReqContext returns a context cancelled on the first interrupt or terminate
// signal, so a deploy or monitor run started from the CLI can be stopped with
// ctrl-c without killing the process mid-write.
func ReqContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	go func() {
		<-sigCh
		signal.Stop(sigCh)
		cancel()
	}()

	return ctx
}
