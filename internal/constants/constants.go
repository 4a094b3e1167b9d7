package constants

// EventChannel names the outbound notification stream for transfer outcomes.
const EventChannel = "bridgeTransactionUpdate"

const (
	DefaultDecimals = 18

	// MaxErrorMessageLen bounds provider text shown to users.
	MaxErrorMessageLen = 120
)
