// Package resources exposes the backend's dashboard resources as typed
// services over the generic apiclient adapter. Services carry no business
// logic; they only name the resource and decode records.
package resources

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/vulnwatch/vulnwatch-client/apiclient"
)

// Service is a typed wrapper around the generic adapter for one resource.
type Service[T any] struct {
	api      *apiclient.Client
	resource string
}

func NewService[T any](api *apiclient.Client, resource string) *Service[T] {
	return &Service[T]{api: api, resource: resource}
}

// List returns one page of records plus the backend's total count.
func (s *Service[T]) List(ctx context.Context, p apiclient.ListParams) ([]T, int, error) {
	result, err := s.api.List(ctx, s.resource, p)
	if err != nil {
		return nil, 0, err
	}
	records, err := decodeRecords[T](result.Data)
	if err != nil {
		return nil, 0, err
	}
	return records, result.Total, nil
}

// ListReferencing returns records that reference id through target.
func (s *Service[T]) ListReferencing(ctx context.Context, p apiclient.GetManyReferenceParams) ([]T, int, error) {
	result, err := s.api.GetManyReference(ctx, s.resource, p)
	if err != nil {
		return nil, 0, err
	}
	records, err := decodeRecords[T](result.Data)
	if err != nil {
		return nil, 0, err
	}
	return records, result.Total, nil
}

func (s *Service[T]) Get(ctx context.Context, id any) (*T, error) {
	raw, err := s.api.Get(ctx, s.resource, id)
	if err != nil {
		return nil, err
	}
	return decodeRecord[T](raw)
}

// GetMany fetches ids concurrently, preserving input order.
func (s *Service[T]) GetMany(ctx context.Context, ids []any) ([]T, error) {
	raws, err := s.api.GetMany(ctx, s.resource, ids)
	if err != nil {
		return nil, err
	}
	return decodeRecords[T](raws)
}

func (s *Service[T]) Create(ctx context.Context, record any) (*T, error) {
	raw, err := s.api.Create(ctx, s.resource, record)
	if err != nil {
		return nil, err
	}
	return decodeRecord[T](raw)
}

func (s *Service[T]) Update(ctx context.Context, id any, patch any) (*T, error) {
	raw, err := s.api.Update(ctx, s.resource, id, patch)
	if err != nil {
		return nil, err
	}
	return decodeRecord[T](raw)
}

// UpdateMany applies the same patch to every id and returns the updated ids.
func (s *Service[T]) UpdateMany(ctx context.Context, ids []any, patch any) ([]any, error) {
	return s.api.UpdateMany(ctx, s.resource, ids, patch)
}

func (s *Service[T]) Delete(ctx context.Context, id any) error {
	_, err := s.api.Delete(ctx, s.resource, id)
	return err
}

// DeleteMany deletes ids concurrently with all-or-nothing completion.
func (s *Service[T]) DeleteMany(ctx context.Context, ids []any) error {
	return s.api.DeleteMany(ctx, s.resource, ids)
}

func decodeRecord[T any](raw json.RawMessage) (*T, error) {
	var record T
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, errors.Wrap(err, "[resources] decode record")
	}
	return &record, nil
}

func decodeRecords[T any](raws []json.RawMessage) ([]T, error) {
	records := make([]T, 0, len(raws))
	for _, raw := range raws {
		record, err := decodeRecord[T](raw)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

// Registry bundles one typed service per dashboard resource.
type Registry struct {
	Products            *Service[Product]
	Observations        *ObservationService
	Branches            *Service[Branch]
	LicensePolicies     *Service[LicensePolicy]
	Users               *Service[User]
	AuthorizationGroups *Service[AuthorizationGroup]
	VEXDocuments        *Service[VEXDocument]
}

func NewRegistry(api *apiclient.Client) *Registry {
	return &Registry{
		Products:            NewService[Product](api, "products"),
		Observations:        newObservationService(api),
		Branches:            NewService[Branch](api, "branches"),
		LicensePolicies:     NewService[LicensePolicy](api, "license_policies"),
		Users:               NewService[User](api, "users"),
		AuthorizationGroups: NewService[AuthorizationGroup](api, "authorization_groups"),
		VEXDocuments:        NewService[VEXDocument](api, "vex_documents"),
	}
}
