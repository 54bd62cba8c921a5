// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package errutil_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"

	"github.com/passgate/passgate/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("MY_CODE").Errorf("test error")
	errutil.AssertErrorCode(t, err, "MY_CODE")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("user_id", int64(7)).Errorf("test error")
	errutil.AssertErrorContext(t, err, "user_id", int64(7))
}

func TestAssertErrorIs_WrappedSentinel(t *testing.T) {
	sentinel := errors.New("not found")
	err := oops.Code("CREDENTIAL_USER_NOT_FOUND").Wrap(sentinel)
	errutil.AssertErrorIs(t, err, sentinel, "CREDENTIAL_USER_NOT_FOUND")
}
