package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// JobID records the publish job identifier under the key "job_id".
// If id is nil, it returns an empty Attr.
func JobID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("job_id", id)
}

// Platform records the target platform under the key "platform".
func Platform(p any) slog.Attr {
	if p == nil {
		return slog.Attr{}
	}
	return slog.Any("platform", p)
}

// Account records the destination account reference under the key "account_ref".
func Account(ref string) slog.Attr {
	if ref == "" {
		return slog.Attr{}
	}
	return slog.String("account_ref", ref)
}
