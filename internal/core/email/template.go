package email

import (
	"html"
	"strings"
)

// buildHTMLFromTemplate creates a simple HTML email from template data.
// Values are escaped; newlines in message become line breaks.
func buildHTMLFromTemplate(data map[string]interface{}) string {
	title := html.EscapeString(getStringValue(data, "title", "Fleet notification"))
	message := html.EscapeString(getStringValue(data, "message", ""))
	message = strings.ReplaceAll(message, "\n", "<br>")

	return `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #1f6feb; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background: #f9f9f9; }
        .footer { padding: 10px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>` + title + `</h1>
        </div>
        <div class="content">
            <p>` + message + `</p>
        </div>
        <div class="footer">
            <p>Sent by fleet workflow automation</p>
        </div>
    </div>
</body>
</html>`
}

func getStringValue(data map[string]interface{}, key, defaultValue string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok && str != "" {
			return str
		}
	}
	return defaultValue
}
