package featureflag

type Flag string

const (
	// Checks every index search against a brute-force scan and reports
	// mismatches.
	FlagVerifySearch Flag = "VERIFY_SEARCH"

	FlagDisableWebSocket Flag = "DISABLE_WEBSOCKET"
	FlagDisableHTTPAPI   Flag = "DISABLE_HTTP_API"
	FlagDisableSmokeTest Flag = "DISABLE_SMOKE_TEST"
)

// Flags returns the flags known by the server.
func Flags() []Flag {
	return []Flag{
		FlagVerifySearch,
		FlagDisableWebSocket,
		FlagDisableHTTPAPI,
		FlagDisableSmokeTest,
	}
}
