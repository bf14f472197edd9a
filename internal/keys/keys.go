// Package keys maps (assignment, sub-assignment) pairs onto storage keys.
//
// Local keys use fixed literal prefixes so that every answer and every
// paragraph set of one assignment can be found with a single prefix scan:
//
//	textbox-assignment_<assignmentID>_textbox-sub_<subID>  -> answer HTML
//	textbox-paragraphs_<assignmentID>_textbox-sub_<subID>  -> paragraph JSON
//
// The extension peer uses the shorter composite form "<assignmentID>|<subID>".
package keys

import "strings"

const (
	AnswerPrefix     = "textbox-assignment_"
	ParagraphsPrefix = "textbox-paragraphs_"
	SubPrefix        = "textbox-sub_"

	// ExtensionSeparator joins assignment and sub-assignment in bridge keys.
	ExtensionSeparator = "|"
	// TitleSeparator splits an assignment id into its prefix and display suffix.
	TitleSeparator = "_"
)

func AnswerKey(assignmentID, subID string) string {
	return AnswerScanPrefix(assignmentID) + subID
}

func ParagraphsKey(assignmentID, subID string) string {
	return ParagraphsScanPrefix(assignmentID) + subID
}

// AnswerScanPrefix is the common prefix of every answer key of an assignment.
func AnswerScanPrefix(assignmentID string) string {
	return AnswerPrefix + assignmentID + "_" + SubPrefix
}

// ParagraphsScanPrefix is the common prefix of every paragraph key of an assignment.
func ParagraphsScanPrefix(assignmentID string) string {
	return ParagraphsPrefix + assignmentID + "_" + SubPrefix
}

// SubIDFromParagraphsKey returns everything after the first sub marker.
func SubIDFromParagraphsKey(key string) (string, bool) {
	i := strings.Index(key, SubPrefix)
	if i < 0 {
		return "", false
	}
	return key[i+len(SubPrefix):], true
}

func ExtensionKey(assignmentID, subID string) string {
	return assignmentID + ExtensionSeparator + subID
}

// SplitExtensionKey splits a bridge key on its first separator.
func SplitExtensionKey(key string) (assignmentID, subID string, ok bool) {
	assignmentID, subID, ok = strings.Cut(key, ExtensionSeparator)
	return
}

// DisplaySuffix is the human readable part of an assignment id: whatever
// follows the first "_", or the whole id when there is none.
func DisplaySuffix(assignmentID string) string {
	if _, suffix, ok := strings.Cut(assignmentID, TitleSeparator); ok {
		return suffix
	}
	return assignmentID
}
