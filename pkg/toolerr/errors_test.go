package toolerr

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := New(CodeRange, "start_line %d is out of range", 0)
	assert.Equal(t, "RangeError: start_line 0 is out of range", err.Error())
	assert.Equal(t, "start_line 0 is out of range", MessageOf(err))

	wrapped := Wrap(CodeIO, errors.New("disk full"), "write failed")
	assert.Equal(t, "IOError: write failed: disk full", wrapped.Error())
	assert.Equal(t, "disk full", errors.Unwrap(wrapped).Error())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	inner := New(CodeEncoding, "not utf-8")
	outer := fmt.Errorf("reading: %w", inner)
	assert.Equal(t, CodeEncoding, CodeOf(outer))
	assert.Equal(t, "not utf-8", MessageOf(outer))
}

func TestFromFS(t *testing.T) {
	assert.Nil(t, FromFS(nil, "x"))
	assert.Equal(t, CodeNotFound, FromFS(fs.ErrNotExist, "a.txt").Code)
	assert.Equal(t, CodePermission, FromFS(&fs.PathError{Op: "open", Path: "a", Err: fs.ErrPermission}, "a").Code)
	assert.Equal(t, CodeIO, FromFS(errors.New("boom"), "a").Code)
	assert.Contains(t, FromFS(fs.ErrNotExist, "a.txt").Error(), "'a.txt'")
}
