package types

import "errors"

// Причины отсутствия котировки. Адаптеры оборачивают их через %w,
// дальше fan-out их не пропускает.
var (
	ErrTransport        = errors.New("transport error")
	ErrUpstream         = errors.New("upstream error")
	ErrUnsupportedVenue = errors.New("unsupported venue")
	ErrDataAbsent       = errors.New("data absent")

	// ErrStore means a persisted cache could not be written. Rounds abort on it.
	ErrStore = errors.New("cache store unwritable")
)

// ReasonOf maps an adapter error onto a short label for logs and metrics.
func ReasonOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrStore):
		return "store"
	case errors.Is(err, ErrUnsupportedVenue):
		return "unsupported"
	case errors.Is(err, ErrDataAbsent):
		return "absent"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "error"
	}
}
