package tutor

import (
	"time"

	"github.com/xpanvictor/xtutor/internal/domains/conversation"
)

// maybeReview looks at the student's work unprompted when the tutor asked
// them to write something and they have been quiet for a while.
func (t *Tutor) maybeReview(now time.Time) bool {
	if !t.sess.WaitForStudent() {
		return false
	}
	if now.Sub(t.sess.LastInteraction()) <= t.cfg.ReviewSilence {
		return false
	}
	if now.Sub(t.sess.LastReview()) <= t.cfg.ReviewInterval {
		return false
	}
	if t.coord.Busy() {
		return false
	}

	t.sess.MarkReviewed(now)
	t.logger.Debugf("scheduling board review")
	t.respond(conversation.Request{
		Utterance: ReviewUtterance,
		Synthetic: true,
		Guard: func() bool {
			// the student spoke after this was scheduled; their turn wins
			return !t.sess.LastInteraction().After(now)
		},
	})
	return true
}
