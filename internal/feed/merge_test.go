package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Dhrumilshah777/imageDrop/internal/model"
)

func img(id string, ms int64) model.Image {
	return model.Image{ID: id, URL: "https://cdn.test/" + id, CreatedAt: time.UnixMilli(ms)}
}

func ids(images []model.Image) []string {
	out := make([]string, len(images))
	for i, im := range images {
		out[i] = im.ID
	}
	return out
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name   string
		user   []model.Image
		global []model.Image
		want   []string
	}{
		{
			name:   "shared id appears once",
			user:   []model.Image{img("1", 100)},
			global: []model.Image{img("1", 100), img("2", 50)},
			want:   []string{"1", "2"},
		},
		{
			name:   "newest first across sources",
			user:   []model.Image{img("a", 10), img("b", 30)},
			global: []model.Image{img("c", 20), img("d", 40)},
			want:   []string{"d", "b", "c", "a"},
		},
		{
			name:   "ties keep concatenation order",
			user:   []model.Image{img("u", 5)},
			global: []model.Image{img("g1", 5), img("g2", 5)},
			want:   []string{"u", "g1", "g2"},
		},
		{
			name: "both empty",
			want: []string{},
		},
		{
			name:   "only global",
			global: []model.Image{img("x", 1), img("y", 2)},
			want:   []string{"y", "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Merge(tt.user, tt.global)))
		})
	}
}

func TestMerge_UserCopyWins(t *testing.T) {
	mine := img("x", 100)
	mine.UserName = "from user query"
	theirs := img("x", 100)
	theirs.UserName = "from global query"

	got := Merge([]model.Image{mine}, []model.Image{theirs})

	assert.Len(t, got, 1)
	assert.Equal(t, "from user query", got[0].UserName)
}

func TestMerge_SortedAndIdempotent(t *testing.T) {
	user := []model.Image{img("a", 7), img("b", 3), img("c", 9)}
	global := []model.Image{img("c", 9), img("d", 1), img("e", 7), img("f", 12)}

	first := Merge(user, global)
	for i := 1; i < len(first); i++ {
		assert.False(t, first[i-1].CreatedAt.Before(first[i].CreatedAt), "not sorted at %d", i)
	}

	assert.Equal(t, first, Merge(user, global))
	assert.Equal(t, []string{"a", "b", "c"}, ids(user), "inputs must not be reordered")
}
