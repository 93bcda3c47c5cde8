package bot

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Replies sent to the chat.
const (
	msgBadInput    = "Sorry, something went wrong. Please use only integer numbers."
	msgUnavailable = "Sorry, predictions are unavailable right now. Please try again later."
)

var printer = message.NewPrinter(language.English)

func introMessage(store int) string {
	return "Generating sales forecast for store " + strconv.Itoa(store) + "..."
}

func unknownStoreMessage(store int) string {
	return "Predictions cannot be made for store " + strconv.Itoa(store) + ". Please contact the sales team for more details."
}

// summaryMessage reports the total predicted sales with thousands separators.
func summaryMessage(store int, total float64) string {
	return printer.Sprintf("Store %s will sell $%.2f for the next six weeks. "+
		"If you wish to get predictions for a different store, just text me another store number.",
		strconv.Itoa(store), total)
}
