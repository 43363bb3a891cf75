package types

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBoxValid(t *testing.T) {
	assert.True(t, BoundingBox{XMin: 0, YMin: 0, XMax: 10, YMax: 10}.Valid())
	assert.False(t, BoundingBox{XMin: 10, YMin: 0, XMax: 10, YMax: 10}.Valid())
	assert.False(t, BoundingBox{XMin: 0, YMin: 20, XMax: 10, YMax: 10}.Valid())
	assert.False(t, BoundingBox{}.Valid())
}

func TestBoundingBoxClamp(t *testing.T) {
	b := BoundingBox{XMin: -5, YMin: 10, XMax: 200, YMax: 300}
	c := b.Clamp(100, 100)

	assert.Equal(t, BoundingBox{XMin: 0, YMin: 10, XMax: 100, YMax: 100}, c)
}

func TestBoundingBoxRect(t *testing.T) {
	b := BoundingBox{XMin: 1.4, YMin: 1.6, XMax: 10.5, YMax: 20.2}
	assert.Equal(t, image.Rect(1, 2, 11, 20), b.Rect())
}

func TestBoundingBoxExtent(t *testing.T) {
	b := BoundingBox{XMin: 10, YMin: 20, XMax: 110, YMax: 70}
	assert.Equal(t, 100.0, b.Width())
	assert.Equal(t, 50.0, b.Height())
}
