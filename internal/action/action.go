// Package action encodes and decodes the identifiers carried by message
// buttons. Decoding yields a closed set of Action types so handlers switch on
// types instead of matching raw strings.
package action

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/pathakanu/lunchbot/internal/model"
)

// ErrUnknownAction means an identifier does not belong to any known action.
var ErrUnknownAction = errors.New("unknown action")

const (
	reactionPrefix     = "reaction_"
	boardPrefix        = "open_reaction_board_"
	reviewPrefix       = "open_review_modal_"
	deleteReviewPrefix = "delete_review_"
	// FeedbackID identifies the feedback button, which is not tied to a menu.
	FeedbackID = "open_feedback_modal"
)

// Action is a decoded button click. The unexported method seals the set.
type Action interface {
	isAction()
}

// React records a sentiment for a menu.
type React struct {
	MenuID    uint
	Sentiment model.Sentiment
}

// ReactionBoard shows who picked which sentiment.
type ReactionBoard struct {
	MenuID uint
}

// OpenReview opens the review editor for a menu.
type OpenReview struct {
	MenuID uint
}

// DeleteReview removes the clicking user's review of a menu.
type DeleteReview struct {
	MenuID uint
}

// OpenFeedback opens the feedback form.
type OpenFeedback struct{}

func (React) isAction()         {}
func (ReactionBoard) isAction() {}
func (OpenReview) isAction()    {}
func (DeleteReview) isAction()  {}
func (OpenFeedback) isAction()  {}

// ReactID returns the button id of a sentiment button.
func ReactID(menuID uint, s model.Sentiment) string {
	return fmt.Sprintf("%s%s_%d", reactionPrefix, s, menuID)
}

// BoardID returns the button id of the "who reacted" button.
func BoardID(menuID uint) string { return fmt.Sprintf("%s%d", boardPrefix, menuID) }

// ReviewID returns the button id of the review button.
func ReviewID(menuID uint) string { return fmt.Sprintf("%s%d", reviewPrefix, menuID) }

// DeleteReviewID returns the button id of the review delete button.
func DeleteReviewID(menuID uint) string { return fmt.Sprintf("%s%d", deleteReviewPrefix, menuID) }

var (
	reactPattern  = regexp.MustCompile(`^` + reactionPrefix + `([a-z]+)_(\d+)$`)
	menuIDPattern = regexp.MustCompile(`^(` + boardPrefix + `|` + reviewPrefix + `|` + deleteReviewPrefix + `)(\d+)$`)
)

// Decode parses a button id into its Action.
func Decode(id string) (Action, error) {
	if id == FeedbackID {
		return OpenFeedback{}, nil
	}

	if m := reactPattern.FindStringSubmatch(id); m != nil {
		sentiment, err := model.ParseSentiment(m[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnknownAction, id, err)
		}
		menuID, err := parseID(m[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnknownAction, id, err)
		}
		return React{MenuID: menuID, Sentiment: sentiment}, nil
	}

	if m := menuIDPattern.FindStringSubmatch(id); m != nil {
		menuID, err := parseID(m[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnknownAction, id, err)
		}
		switch m[1] {
		case boardPrefix:
			return ReactionBoard{MenuID: menuID}, nil
		case reviewPrefix:
			return OpenReview{MenuID: menuID}, nil
		case deleteReviewPrefix:
			return DeleteReview{MenuID: menuID}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownAction, id)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid menu id %q", raw)
	}
	return uint(id), nil
}
