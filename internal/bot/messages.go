package bot

import (
	"fmt"
	"strings"

	"github.com/sebasr/wifi-registry/internal/ingest"
	"github.com/sebasr/wifi-registry/internal/models"
)

// maxMessageRunes stays under Telegram's 4096 character message limit
const maxMessageRunes = 4000

const welcomeText = "Welcome to the WiFi registry bot.\n" +
	"I collect and store Wi-Fi access point observations.\n" +
	"Send data as JSON text or as a .json file.\n\n" +
	"Supported formats:\n" +
	"• Single record: a JSON object\n" +
	"• Several records: a JSON array of objects\n\n" +
	"Commands:\n" +
	"/table - show stored records\n" +
	"/cancel - abandon the current questions\n" +
	"/start - this message"

const exampleText = "Example record:\n" +
	"{\n" +
	"  \"bssid\": \"00:11:22:33:44:55\",\n" +
	"  \"frequency\": 2412,\n" +
	"  \"rssi\": -50,\n" +
	"  \"ssid\": \"MyWiFi\",\n" +
	"  \"timestamp\": 1698115200,\n" +
	"  \"channel_bandwidth\": \"20\",\n" +
	"  \"capabilities\": \"WPA2-PSK\"\n" +
	"}"

const (
	textUnauthorized    = "This chat is not authorized to use the bot."
	textUnknownCommand  = "Unknown command, use /start."
	textEmptyTable      = "The table is empty. Send some access point data first."
	textNotJSONFile     = "Please send a file with the .json extension."
	textFileReceived    = "File received, processing..."
	textExampleWarning  = "This looks like the example from the instructions, not real data. Please send real observations."
	textUnsupportedJSON = "Unsupported JSON: expected an object or an array of objects."
	textFileTooLarge    = "The file is too large."
)

// singleRecordError phrases a rejected single record for the chat
func singleRecordError(err error) string {
	switch ingest.Kind(err) {
	case ingest.KindParse:
		return fmt.Sprintf("Could not parse the message: %v", err)
	case ingest.KindValidation:
		return fmt.Sprintf("Validation error: %v", err)
	case ingest.KindExampleData:
		return textExampleWarning
	case ingest.KindStructural:
		return textUnsupportedJSON
	case ingest.KindConflict:
		return fmt.Sprintf("Already stored: %v", err)
	default:
		return "Could not process the record, please try again later."
	}
}

// batchSummary renders a batch outcome with the first few failure reasons
func batchSummary(r *models.BatchResult) string {
	var b strings.Builder
	b.WriteString("Processing finished!\n\n")
	fmt.Fprintf(&b, "• Successful: %d/%d\n", r.Succeeded, r.Total)
	fmt.Fprintf(&b, "• Errors: %d/%d", r.Failed, r.Total)
	if r.Duplicates > 0 {
		fmt.Fprintf(&b, "\n• Duplicates: %d/%d", r.Duplicates, r.Total)
	}

	if len(r.Errors) > 0 {
		b.WriteString("\n\nFirst errors:")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "\n#%d", e.Index+1)
			if e.BSSID != "" {
				fmt.Fprintf(&b, " (%s)", e.BSSID)
			}
			fmt.Fprintf(&b, ": %s", e.Reason)
		}
	}

	for _, e := range r.Errors {
		if e.Kind == ingest.KindExampleData {
			b.WriteString("\n\n" + textExampleWarning)
			break
		}
	}

	return b.String()
}

// chunk splits text into pieces of at most size runes, preferring line breaks
func chunk(text string, size int) []string {
	var parts []string
	runes := []rune(text)
	for len(runes) > size {
		cut := size
		for i := size; i > size/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 || len(parts) == 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
