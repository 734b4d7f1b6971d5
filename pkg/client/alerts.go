package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// AlertService handles alert-related API calls
type AlertService struct {
	client *Client
}

// ListActive retrieves the complete set of currently relevant alerts.
// This is the authoritative snapshot the reconciler periodically merges.
func (s *AlertService) ListActive(ctx context.Context, opts *ListActiveOptions) ([]Alert, error) {
	query := url.Values{}

	if opts != nil {
		if opts.Severity != "" {
			query.Set("severity", opts.Severity)
		}
		if opts.Acknowledged != nil {
			query.Set("acknowledged", strconv.FormatBool(*opts.Acknowledged))
		}
	}

	path := "/alerts/active"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var alerts []Alert
	if err := s.client.doRequest(ctx, "GET", path, nil, &alerts); err != nil {
		return nil, err
	}

	return alerts, nil
}

// Acknowledge marks an alert as acknowledged
func (s *AlertService) Acknowledge(ctx context.Context, id string) (*Alert, error) {
	path := fmt.Sprintf("/alerts/%s/acknowledge", url.PathEscape(id))

	var alert Alert
	if err := s.client.doRequest(ctx, "POST", path, nil, &alert); err != nil {
		return nil, err
	}

	return &alert, nil
}

// Resolve marks an alert as resolved with the operator's notes
func (s *AlertService) Resolve(ctx context.Context, id, notes string) (*Alert, error) {
	path := fmt.Sprintf("/alerts/%s/resolve", url.PathEscape(id))

	var alert Alert
	if err := s.client.doRequest(ctx, "POST", path, ResolveRequest{ResolutionNotes: notes}, &alert); err != nil {
		return nil, err
	}

	return &alert, nil
}
