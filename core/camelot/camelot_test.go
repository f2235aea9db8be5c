package camelot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{in: "8a", want: Key{8, 'a'}},
		{in: "8A", want: Key{8, 'a'}},
		{in: "12B", want: Key{12, 'b'}},
		{in: " 1b ", want: Key{1, 'b'}},
		{in: "13a", wantErr: true},
		{in: "0b", wantErr: true},
		{in: "8", wantErr: true},
		{in: "c# minor", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "Parse(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "Parse(%q)", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "8a", Key{8, 'a'}.String())
	assert.Equal(t, "12b", Key{12, 'b'}.String())
}

func TestModeSwitch(t *testing.T) {
	assert.Equal(t, Key{8, 'b'}, Key{8, 'a'}.ModeSwitch())
	assert.Equal(t, Key{8, 'a'}, Key{8, 'b'}.ModeSwitch())
}

func TestAdjacentWraps(t *testing.T) {
	adj := Key{1, 'a'}.Adjacent()
	assert.Equal(t, [2]Key{{12, 'a'}, {2, 'a'}}, adj)

	adj = Key{12, 'a'}.Adjacent()
	assert.Equal(t, [2]Key{{11, 'a'}, {1, 'a'}}, adj)

	adj = Key{5, 'b'}.Adjacent()
	assert.Equal(t, [2]Key{{4, 'b'}, {6, 'b'}}, adj)
}

func TestMatchesIsTheUnion(t *testing.T) {
	for n := 1; n <= 12; n++ {
		for _, letter := range []byte{'a', 'b'} {
			k := Key{n, letter}
			got := k.Matches()

			want := map[Key]bool{
				k:               true,
				k.ModeSwitch():  true,
				k.Adjacent()[0]: true,
				k.Adjacent()[1]: true,
			}

			assert.LessOrEqual(t, len(got), 4, "matches(%s)", k)
			seen := map[Key]bool{}
			for _, m := range got {
				seen[m] = true
			}
			assert.Equal(t, want, seen, "matches(%s)", k)
		}
	}
}
