package cel

// PolicyExpressionExamples are sample rules for queue.policies. A rule that
// evaluates to true refuses the envelope.
var PolicyExpressionExamples = map[string]string{
	"null_sender":         `sender == ""`,
	"too_many_recipients": `size(recipients) > 100`,
	"sender_domain":       `sender.endsWith("@spam.example")`,
	"recipient_domain":    `recipients.exists(r, r.endsWith("@blocked.example"))`,
	"plain_http":          `client.protocol == "HTTP"`,
	"unresolved_client":   `!("host" in client)`,
	"missing_subject":     `!("subject" in headers)`,
	"oversized":           `message_size > 10485760`,
	"ehlo_mismatch":       `"host" in client && client.name != client.host`,
}
