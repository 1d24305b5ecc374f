package usecase

import (
	"time"

	"github.com/kirillkom/medbrief/internal/core/domain"
)

// SubmissionObserver receives submission lifecycle signals.
type SubmissionObserver interface {
	WatchObserver
	SubmissionStarted()
	SubmissionFinished(phase domain.Phase, duration time.Duration)
}

type noopObserver struct{}

func (noopObserver) SubmissionStarted() {}
func (noopObserver) SubmissionFinished(domain.Phase, time.Duration) {}
func (noopObserver) WatchResolved(string, domain.SummaryStatus, time.Duration) {}
