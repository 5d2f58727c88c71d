package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type planRequest struct {
	Plan   string `json:"plan" validate:"required,is-paid-plan"`
	Period string `json:"billingPeriod" validate:"required,is-billing-period"`
}

type sortRequest struct {
	SortBy string `json:"sortBy" validate:"omitempty,is-sort-order"`
	Name   string `json:"name" validate:"required,notblank"`
}

func TestPaidPlanRule(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&planRequest{Plan: "PRO", Period: "monthly"}))
	assert.NoError(t, v.Validate(&planRequest{Plan: "BUSINESS", Period: "yearly"}))

	err := v.Validate(&planRequest{Plan: "FREE", Period: "weekly"})
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.Errors, "plan")
	assert.Contains(t, vErr.Errors, "billingPeriod")
}

func TestSortOrderAndNotBlank(t *testing.T) {
	v := New()

	for _, order := range []string{"", SortNewest, SortOldest, SortRating} {
		assert.NoError(t, v.Validate(&sortRequest{SortBy: order, Name: "x"}), order)
	}

	err := v.Validate(&sortRequest{SortBy: "random", Name: "   "})
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.Errors, "sortBy")
	assert.Contains(t, vErr.Errors, "name")
}
