// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cmdrunner

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner_MissingBinary(t *testing.T) {
	r := New(nil)

	_, _, err := r.Run(context.Background(), "cardscan-no-such-binary-xyz")
	require.Error(t, err)
	assert.True(t, IsNotInstalled(err))

	var runErr *Error
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, "cardscan-no-such-binary-xyz", runErr.Name)
}

func TestExecRunner_Echo(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}

	out, _, err := New(nil).Run(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestError_Message(t *testing.T) {
	err := &Error{Name: "pdftotext", Err: errors.New("exit status 1"), Stderr: " Syntax Error \n"}
	assert.Equal(t, "pdftotext: exit status 1: Syntax Error", err.Error())

	err = &Error{Name: "pdftoppm", Err: errors.New("exit status 99")}
	assert.Equal(t, "pdftoppm: exit status 99", err.Error())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab...(truncated)", Truncate("abc", 2))
}
