package archive

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func TestPostFromFields(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected Post
		extra    []string
	}{
		{
			name: "foolfuuka post",
			raw: `{
				"num": "1234", "thread_num": "1200", "op": "0", "timestamp": 1700000000,
				"fourchan_date": "11/14/23(Tue)22:13", "title": null, "name": "Anonymous",
				"comment": "hello", "poster_country_name": "Canada",
				"board": {"name": "Technology", "shortname": "g"},
				"media": {"media_filename": "a.png", "media_w": "640", "media_h": 480, "media_link": "https://x/a.png"},
				"doc_id": "99", "capcode": "N"
			}`,
			expected: Post{
				Num: 1234, ThreadNum: 1200, Timestamp: 1700000000,
				FourchanDate: "11/14/23(Tue)22:13", Name: "Anonymous", Comment: "hello",
				PosterCountryName: "Canada",
				Board:             &Board{ShortName: "g", Name: "Technology"},
				Media:             &Media{Filename: "a.png", Width: 640, Height: 480, Link: "https://x/a.png"},
			},
			extra: []string{"capcode", "doc_id"},
		},
		{
			name: "op flag and processed comment fallback",
			raw:  `{"num": 5, "op": "1", "comment_processed": "<span>&gt;quote</span><br>line"}`,
			expected: Post{
				Num: 5, OP: true, Comment: ">quote\nline",
			},
		},
		{
			name:     "float numbers",
			raw:      `{"num": 7.0, "op": true}`,
			expected: Post{Num: 7, OP: true},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var post Post
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &post))

			diff := cmp.Diff(tc.expected, post, cmpopts.IgnoreUnexported(Post{}))
			require.Empty(t, diff)
			require.Equal(t, tc.extra, post.ExtraKeys())
		})
	}
}

func TestPostFromFieldsRequiresNum(t *testing.T) {
	_, err := PostFromFields(map[string]any{"comment": "x"})
	require.ErrorIs(t, err, ErrMissingNum)

	_, err = PostFromFields(map[string]any{"num": "abc"})
	require.ErrorIs(t, err, ErrMissingNum)
}

func TestPostBoardName(t *testing.T) {
	require.Equal(t, AnyBoard, Post{Num: 1}.BoardName())
	require.Equal(t, "g", Post{Num: 1, Board: &Board{ShortName: "g"}}.BoardName())
}

func TestPostMarshalKeepsExtraFields(t *testing.T) {
	post, err := PostFromFields(map[string]any{"num": "1", "doc_id": "3", "comment": "c"})
	require.NoError(t, err)

	data, err := json.Marshal(post)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, "3", out["doc_id"])
	require.Equal(t, "c", out["comment"])
	require.Equal(t, float64(1), out["num"])
}

func TestThreadPosts(t *testing.T) {
	thread := Thread{
		OP:      Post{Num: 10, OP: true},
		Replies: []Post{{Num: 11}, {Num: 12}},
	}
	require.Equal(t, int64(10), thread.Num())

	var nums []int64
	for _, p := range thread.Posts() {
		nums = append(nums, p.Num)
	}
	require.Equal(t, []int64{10, 11, 12}, nums)
}

func testRegistry(t *testing.T) Registry {
	registry, err := NewRegistry([]Descriptor{
		{Name: "desuarchive", BaseURL: "https://desuarchive.org", Family: FamilyJSON},
		{Name: "4plebs", BaseURL: "https://archive.4plebs.org", Family: FamilyProtected},
		{Name: "warosu", BaseURL: "https://warosu.org", Family: FamilyHTML, PageSize: 24},
	})
	require.NoError(t, err)
	return registry
}

func TestRegistryResolve(t *testing.T) {
	registry := testRegistry(t)

	testCases := []struct {
		selector string
		expected string
	}{
		{selector: "desuarchive", expected: "desuarchive"},
		{selector: "WAROSU", expected: "warosu"},
		{selector: "1", expected: "4plebs"},
		{selector: " 2 ", expected: "warosu"},
	}
	for _, tc := range testCases {
		d, err := registry.Resolve(tc.selector)
		require.NoError(t, err, tc.selector)
		require.Equal(t, tc.expected, d.Name, tc.selector)
	}
}

func TestRegistryResolveUnknown(t *testing.T) {
	registry := testRegistry(t)

	_, err := registry.Resolve("warosoo")
	require.ErrorIs(t, err, ErrUnknownArchive)

	var unknown UnknownArchiveError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, "warosu", unknown.Suggestion)

	_, err = registry.Resolve("9")
	require.ErrorIs(t, err, ErrUnknownArchive)

	_, err = registry.ResolveAll([]string{"0", "nope"})
	require.ErrorIs(t, err, ErrUnknownArchive)

	all, err := registry.ResolveAll(nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Descriptor{{Name: "a"}, {Name: "A"}})
	require.ErrorIs(t, err, ErrDuplicateArchive)
}
