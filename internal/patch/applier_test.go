package patch

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/speller/internal/speller"
)

func sugg(word string, pos, length int, candidates ...string) speller.Suggestion {
	return speller.Suggestion{Word: word, Position: pos, Length: length, Candidates: candidates}
}

// spliceDescending is an independent oracle: apply edits from the highest
// position down so earlier offsets stay valid.
func spliceDescending(text string, edits []speller.Suggestion) string {
	sorted := append([]speller.Suggestion(nil), edits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position > sorted[j].Position })
	runes := []rune(text)
	for _, s := range sorted {
		tail := append([]rune(s.Candidates[0]), runes[s.End():]...)
		runes = append(runes[:s.Position], tail...)
	}
	return string(runes)
}

func TestApply(t *testing.T) {
	a := NewApplier(nil)

	t.Run("no suggestions leaves text unchanged", func(t *testing.T) {
		res, err := a.Apply("всё в порядке", nil)
		require.NoError(t, err)
		assert.Equal(t, "всё в порядке", res.Text)
		assert.Empty(t, res.Entries)
		assert.False(t, res.Changed())
	})

	t.Run("misspelled word is replaced", func(t *testing.T) {
		res, err := a.Apply("эта строка содежит ошибку", []speller.Suggestion{sugg("содежит", 11, 7, "содержит")})
		require.NoError(t, err)
		assert.Equal(t, "эта строка содержит ошибку", res.Text)
		assert.Equal(t, []Entry{{Word: "содежит", Replacement: "содержит", Position: 11}}, res.Entries)
	})

	t.Run("capitalized word is skipped", func(t *testing.T) {
		res, err := a.Apply("Мася пошла домой", []speller.Suggestion{sugg("Мася", 0, 4, "Маша")})
		require.NoError(t, err)
		assert.Equal(t, "Мася пошла домой", res.Text)
		assert.Empty(t, res.Entries)
		assert.Equal(t, 1, res.Skipped)
	})

	t.Run("empty candidates are skipped regardless of case", func(t *testing.T) {
		for _, word := range []string{"ашибка", "Ашибка"} {
			text := word + " тут"
			res, err := a.Apply(text, []speller.Suggestion{sugg(word, 0, 6)})
			require.NoError(t, err)
			assert.Equal(t, text, res.Text)
			assert.Empty(t, res.Entries)
		}
	})

	t.Run("words starting with a digit are skipped", func(t *testing.T) {
		res, err := a.Apply("5ый раз", []speller.Suggestion{sugg("5ый", 0, 3, "5-й")})
		require.NoError(t, err)
		assert.Equal(t, "5ый раз", res.Text)
	})

	t.Run("sharp s is lowercase while capital sharp s is not", func(t *testing.T) {
		res, err := a.Apply("ßtrase", []speller.Suggestion{sugg("ßtrase", 0, 6, "ßtraße")})
		require.NoError(t, err)
		assert.Equal(t, "ßtraße", res.Text)
		require.Len(t, res.Entries, 1)

		res, err = a.Apply("ẞtrase", []speller.Suggestion{sugg("ẞtrase", 0, 6, "ẞtraße")})
		require.NoError(t, err)
		assert.Equal(t, "ẞtrase", res.Text)
		assert.Empty(t, res.Entries)
	})

	t.Run("only the first candidate is used", func(t *testing.T) {
		res, err := a.Apply("превет", []speller.Suggestion{sugg("превет", 0, 6, "привет", "предмет")})
		require.NoError(t, err)
		assert.Equal(t, "привет", res.Text)
	})

	t.Run("single splice equation", func(t *testing.T) {
		text := "abcdefghij"
		s := sugg("def", 3, 3, "XY")
		res, err := a.Apply(text, []speller.Suggestion{s})
		require.NoError(t, err)
		assert.Equal(t, text[:3]+"XY"+text[6:], res.Text)
	})

	t.Run("two edits at 0 and 20 in a 30 character string", func(t *testing.T) {
		text := "ашибка и ещё слова, очепятка х"
		require.Equal(t, 30, utf8.RuneCountInString(text))

		edits := []speller.Suggestion{
			sugg("ашибка", 0, 6, "ошибка!!"),
			sugg("очепятка", 20, 8, "опечатка"),
		}
		res, err := a.Apply(text, edits)
		require.NoError(t, err)
		assert.Equal(t, "ошибка!! и ещё слова, опечатка х", res.Text)
		assert.Equal(t, 32, utf8.RuneCountInString(res.Text))
		assert.Equal(t, spliceDescending(text, edits), res.Text)
	})

	t.Run("accepted and skipped suggestions mix", func(t *testing.T) {
		text := "Мася адна пашла домой"
		res, err := a.Apply(text, []speller.Suggestion{
			sugg("Мася", 0, 4, "Маша"),
			sugg("адна", 5, 4, "одна"),
			sugg("пашла", 10, 5),
		})
		require.NoError(t, err)
		assert.Equal(t, "Мася одна пашла домой", res.Text)
		assert.Equal(t, 2, res.Skipped)
		require.Len(t, res.Entries, 1)
		assert.Equal(t, "адна -> одна", res.Entries[0].String())
	})

	t.Run("insertion with zero length", func(t *testing.T) {
		res, err := a.Apply("abc", []speller.Suggestion{sugg("b", 1, 0, "-")})
		require.NoError(t, err)
		assert.Equal(t, "a-bc", res.Text)
	})

	t.Run("deletion with empty replacement", func(t *testing.T) {
		res, err := a.Apply("the the end", []speller.Suggestion{sugg("the ", 4, 4, "")})
		require.NoError(t, err)
		assert.Equal(t, "the end", res.Text)
	})

	t.Run("input suggestions are not modified", func(t *testing.T) {
		in := []speller.Suggestion{sugg("bb", 3, 2, "B"), sugg("aa", 0, 2, "A")}
		snapshot := append([]speller.Suggestion(nil), in...)
		_, err := a.Apply("aa bb", in)
		require.NoError(t, err)
		assert.Equal(t, snapshot, in)
	})
}

func TestApplyOrderInvariance(t *testing.T) {
	a := NewApplier(nil)
	text := "мама мыла раму, а папа читал газету вечером дома"
	words := strings.Fields(text)

	var edits []speller.Suggestion
	pos := 0
	for i, w := range words {
		n := utf8.RuneCountInString(w)
		if i%2 == 0 {
			edits = append(edits, sugg(w, pos, n, strings.ToUpper(w)+"_"+w))
		}
		pos += n + 1
	}

	want := spliceDescending(text, edits)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]speller.Suggestion(nil), edits...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		res, err := a.Apply(text, shuffled)
		require.NoError(t, err)
		assert.Equal(t, want, res.Text)
		require.Len(t, res.Entries, len(edits))
		// Entries keep the order the suggestions arrived in.
		for k := range shuffled {
			assert.Equal(t, shuffled[k].Word, res.Entries[k].Word)
		}
	}
}

func TestApplyValidation(t *testing.T) {
	a := NewApplier(nil)

	cases := []struct {
		name string
		text string
		sugg []speller.Suggestion
		want error
	}{
		{"past the end", "abc", []speller.Suggestion{sugg("cd", 2, 2, "x")}, ErrOutOfRange},
		{"negative position", "abc", []speller.Suggestion{sugg("a", -1, 1, "x")}, ErrOutOfRange},
		{"negative length", "abc", []speller.Suggestion{sugg("a", 0, -1, "x")}, ErrOutOfRange},
		{"overlap", "abcdef", []speller.Suggestion{sugg("abc", 0, 3, "x"), sugg("cde", 2, 3, "y")}, ErrOverlap},
		{"overlap reported out of order", "abcdef", []speller.Suggestion{sugg("cde", 2, 3, "y"), sugg("abc", 0, 3, "x")}, ErrOverlap},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Apply(tt.text, tt.sugg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
			assert.True(t, errors.Is(err, ErrInvalidSuggestion))
		})
	}

	t.Run("overlap with a skipped suggestion is allowed", func(t *testing.T) {
		res, err := a.Apply("abcdef", []speller.Suggestion{sugg("abc", 0, 3, "x"), sugg("Cde", 2, 3, "y")})
		require.NoError(t, err)
		assert.Equal(t, "xdef", res.Text)
	})

	t.Run("adjacent spans do not overlap", func(t *testing.T) {
		res, err := a.Apply("abcdef", []speller.Suggestion{sugg("abc", 0, 3, "1"), sugg("def", 3, 3, "2")})
		require.NoError(t, err)
		assert.Equal(t, "12", res.Text)
	})

	t.Run("out of range skipped suggestion is ignored", func(t *testing.T) {
		res, err := a.Apply("abc", []speller.Suggestion{sugg("zz", 10, 2)})
		require.NoError(t, err)
		assert.Equal(t, "abc", res.Text)
	})
}

func TestCustomPolicy(t *testing.T) {
	acceptAll := PolicyFunc(func(s speller.Suggestion) bool { return len(s.Candidates) > 0 })
	res, err := NewApplier(acceptAll).Apply("Мася", []speller.Suggestion{sugg("Мася", 0, 4, "Маша")})
	require.NoError(t, err)
	assert.Equal(t, "Маша", res.Text)
}

func TestLog(t *testing.T) {
	var log Log
	assert.Equal(t, "", log.String())

	log.Append(Entry{Word: "содежит", Replacement: "содержит"})
	log.Append()
	log.Append(Entry{Word: "адна", Replacement: "одна"}, Entry{Word: "x", Replacement: "y"})

	assert.Equal(t, 3, log.Len())
	assert.Equal(t, "содежит -> содержит\nадна -> одна\nx -> y\n", log.String())

	var sb strings.Builder
	n, err := log.WriteTo(&sb)
	require.NoError(t, err)
	assert.Equal(t, int64(len(log.String())), n)

	entries := log.Entries()
	entries[0].Word = "changed"
	assert.Equal(t, "содежит", log.Entries()[0].Word)
}
