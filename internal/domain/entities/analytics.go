package entities

// UnassignedProjectName labels feedback that has no project reference.
const UnassignedProjectName = "Unassigned"

// UnknownProjectName labels feedback whose project no longer exists.
const UnknownProjectName = "Unknown Project"

// RatingBucket is the number of in-scope feedback records with one rating.
type RatingBucket struct {
	Rating int `json:"rating"`
	Count  int `json:"count"`
}

// ProjectFeedbackCount is one row of the per-project breakdown. ProjectID is
// nil for the unassigned group.
type ProjectFeedbackCount struct {
	ProjectID   *string `json:"projectId"`
	ProjectName string  `json:"projectName"`
	Count       int     `json:"count"`
}

// FeedbackAnalytics is the aggregate returned by the analytics endpoint.
type FeedbackAnalytics struct {
	TotalFeedback      int                    `json:"totalFeedback"`
	AverageRating      float64                `json:"averageRating"`
	RatedFeedbackCount int                    `json:"ratedFeedbackCount"`
	RatingDistribution []RatingBucket         `json:"ratingDistribution"`
	FeedbackByProject  []ProjectFeedbackCount `json:"feedbackByProject"`
	Recent7Days        int                    `json:"recent7Days"`
	Recent30Days       int                    `json:"recent30Days"`
	TotalProjects      int                    `json:"totalProjects"`
}
