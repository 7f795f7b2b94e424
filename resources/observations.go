package resources

import (
	"context"

	"github.com/vulnwatch/vulnwatch-client/apiclient"
)

// ObservationService adds the assessment operation on top of the generic
// CRUD surface.
type ObservationService struct {
	*Service[Observation]
}

func newObservationService(api *apiclient.Client) *ObservationService {
	return &ObservationService{Service: NewService[Observation](api, "observations")}
}

// Assess records a reviewer's severity/status override on an observation.
func (s *ObservationService) Assess(ctx context.Context, id any, assessment ObservationAssessment) (*Observation, error) {
	return s.Update(ctx, id, assessment)
}
