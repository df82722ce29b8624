// Package workflow is the approval pipeline core: the payment status state
// machine, the role/target rule table, and the transition engine that applies
// status changes and activity-log appends atomically.
package workflow

// Status is a payment's position in the approval pipeline. Stored values match
// the historical data, including the shortened returned_commercial.
type Status string

const (
	StatusPending              Status = "pending"
	StatusCommercialReview     Status = "commercial_review"
	StatusFinanceReview        Status = "finance_review"
	StatusApproved             Status = "approved"
	StatusFinalApproved        Status = "final_approved"
	StatusRejected             Status = "rejected"
	StatusIncomplete           Status = "incomplete"
	StatusReturnedToCommercial Status = "returned_commercial"
)

// AllStatuses in pipeline order, used for validation and the override role's
// unrestricted target list.
var AllStatuses = []Status{
	StatusPending,
	StatusCommercialReview,
	StatusFinanceReview,
	StatusApproved,
	StatusFinalApproved,
	StatusRejected,
	StatusIncomplete,
	StatusReturnedToCommercial,
}

// ParseStatus validates a submitted status value.
func ParseStatus(s string) (Status, bool) {
	for _, st := range AllStatuses {
		if Status(s) == st {
			return st, true
		}
	}
	return "", false
}

// Customer-visible buckets. Several internal statuses collapse into a single
// "under review" label so customers never see the internal hand-offs.
const (
	BucketUnderReview   = "under_review"
	BucketFinalApproved = "final_approved"
	BucketRejected      = "rejected"
	BucketIncomplete    = "incomplete"
)

// CustomerBucket maps an internal status onto its customer-facing label.
func CustomerBucket(s Status) string {
	switch s {
	case StatusApproved, StatusFinalApproved:
		return BucketFinalApproved
	case StatusRejected:
		return BucketRejected
	case StatusIncomplete:
		return BucketIncomplete
	default:
		return BucketUnderReview
	}
}

// BucketStatuses expands a customer-facing bucket back into the internal
// statuses it covers; nil for an unknown bucket.
func BucketStatuses(bucket string) []Status {
	switch bucket {
	case BucketUnderReview:
		return []Status{StatusPending, StatusCommercialReview, StatusFinanceReview, StatusReturnedToCommercial}
	case BucketFinalApproved:
		return []Status{StatusApproved, StatusFinalApproved}
	case BucketRejected:
		return []Status{StatusRejected}
	case BucketIncomplete:
		return []Status{StatusIncomplete}
	default:
		return nil
	}
}

// NoteRequired reports whether a transition to s must carry a non-empty note.
func NoteRequired(s Status) bool {
	return s == StatusRejected || s == StatusIncomplete
}

// locksWhenSetByFinance reports whether finance setting s closes the record
// behind the one-way finance lock.
func locksWhenSetByFinance(s Status) bool {
	return s == StatusFinalApproved || s == StatusRejected || s == StatusIncomplete
}
