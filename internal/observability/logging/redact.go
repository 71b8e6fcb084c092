package logging

import "regexp"

var (
	// Robot webhooks authenticate through the query string.
	querySecretPattern = regexp.MustCompile(`(?i)([?&](?:access_token|key|token|sign|secret|signature)=)[^&\s"']+`)

	// Feishu puts the bot token in the path.
	feishuHookPattern = regexp.MustCompile(`(/open-apis/bot/v2/hook/)[A-Za-z0-9-]+`)

	// Passwords embedded in URLs and DSNs.
	userinfoPattern = regexp.MustCompile(`://([^:/\s@]+):([^@\s]+)@`)

	bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`)
)

// Redact masks webhook tokens, signatures and credentials in msg so it can be
// logged or stored as a delivery diagnostic.
func Redact(msg string) string {
	msg = querySecretPattern.ReplaceAllString(msg, "${1}****")
	msg = feishuHookPattern.ReplaceAllString(msg, "${1}****")
	msg = userinfoPattern.ReplaceAllString(msg, "://$1:****@")
	msg = bearerPattern.ReplaceAllString(msg, "${1}****")
	return msg
}
