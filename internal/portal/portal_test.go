package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripDecorativeRemovesDuplicateRegion(t *testing.T) {
	body := "Grades\n\nGPA 3.92\n\nGrades\n\nGPA 3.92"
	decorative := "Grades\n\nGPA 3.92"

	got := stripDecorative(body, decorative)
	assert.Equal(t, "Grades\nGPA 3.92", got)
}

func TestStripDecorativeEmptyRegionIsNoop(t *testing.T) {
	assert.Equal(t, "hello", stripDecorative("hello", ""))
}

func TestFormatElements(t *testing.T) {
	elements := []ElementDescriptor{
		{Selector: "#WD0147", Tag: "input", Label: "평점평균", Kind: "input"},
		{Selector: "a:nth-of-type(3)", Tag: "a", Label: "학기별 성적 조회", Kind: "link"},
	}

	got := FormatElements(elements)
	assert.Contains(t, got, "[input] 평점평균 -> #WD0147")
	assert.Contains(t, got, "[link] 학기별 성적 조회 -> a:nth-of-type(3)")
}

func TestFormatElementsEmpty(t *testing.T) {
	assert.Equal(t, "no interactive elements found on this screen", FormatElements(nil))
}

func TestDefaultConfigBounds(t *testing.T) {
	cfg := DefaultConfig()
	assert.NotZero(t, cfg.FrameTimeout)
	assert.NotZero(t, cfg.ActionTimeout)
	assert.NotZero(t, cfg.NavigationTimeout)
	assert.Contains(t, cfg.EntryURL, "saint.ssu.ac.kr")
}
