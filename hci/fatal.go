package hci

// fatalf aborts the process on a protocol violation or controller
// unresponsiveness — the classes of error this module treats as
// unrecoverable (see SPEC_FULL.md §7). Ordinary transport I/O errors never
// go through here; they're routed to the configured error handler instead.
func fatalf(log Logger, format string, args ...interface{}) {
	log.Fatalf(format, args...)
}
