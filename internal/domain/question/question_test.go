package question

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFold(t *testing.T) {
	cases := []struct {
		name string
		in   string
		out  string
	}{
		{name: "accents and case", in: "Matemática", out: "matematica"},
		{name: "upper without accents", in: "MATEMATICA", out: "matematica"},
		{name: "cedilla and tilde", in: "  Ciências   da NATUREZA ", out: "ciencias da natureza"},
		{name: "empty", in: "   ", out: ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.out, Fold(tc.in), tc.name)
	}
	require.True(t, SameFold("Matemática", "MATEMATICA"))
	require.False(t, SameFold("Física", "Química"))
}

func TestRecordValidate(t *testing.T) {
	valid := sampleRecord()
	require.NoError(t, valid.Validate())

	oneAlt := sampleRecord()
	oneAlt.Alternativas = oneAlt.Alternativas[:1]
	oneAlt.RespostaLetra = "A"
	require.ErrorIs(t, oneAlt.Validate(), ErrInvalidRecord)

	wrongAnswer := sampleRecord()
	wrongAnswer.RespostaLetra = "E"
	require.ErrorIs(t, wrongAnswer.Validate(), ErrInvalidRecord)

	missingAnswer := sampleRecord()
	missingAnswer.RespostaLetra = ""
	require.ErrorIs(t, missingAnswer.Validate(), ErrInvalidRecord)

	duplicate := sampleRecord()
	duplicate.Alternativas[1].Letra = "a"
	require.ErrorIs(t, duplicate.Validate(), ErrInvalidRecord)

	tooMany := sampleRecord()
	for _, l := range []string{"D", "E", "F"} {
		tooMany.Alternativas = append(tooMany.Alternativas, Alternative{Letra: l, Texto: l})
	}
	require.ErrorIs(t, tooMany.Validate(), ErrInvalidRecord)
}

func TestRecordNormalizeAndHelpers(t *testing.T) {
	rec := Record{
		ID:            " q1 ",
		Materia:       " Biologia ",
		Corpo:         []ContentBlock{{Conteudo: "Texto"}, {Tipo: BlockImage, URL: "x.png"}, {Tipo: "text", Conteudo: "mais"}},
		Alternativas:  []Alternative{{Letra: "a)", Texto: " um "}, {Letra: " b ", Texto: "dois"}},
		RespostaLetra: "b",
	}
	rec.Normalize()
	require.Equal(t, "q1", rec.ID)
	require.Equal(t, "Biologia", rec.Materia)
	require.Equal(t, "A", rec.Alternativas[0].Letra)
	require.Equal(t, "um", rec.Alternativas[0].Texto)
	require.Equal(t, "B", rec.RespostaLetra)
	require.NoError(t, rec.Validate())
	require.Equal(t, "Texto\nmais", rec.Stem())

	correct, ok := rec.CorrectAlternative()
	require.True(t, ok)
	require.Equal(t, "dois", correct.Texto)
}

func TestSearchFilterMatches(t *testing.T) {
	rec := sampleRecord()
	rec.Materia = "MATEMATICA"
	rec.Ano = IntPtr(2021)
	rec.Etapa = IntPtr(2)

	require.True(t, SearchFilter{Materia: "Matemática"}.Matches(rec))
	require.True(t, SearchFilter{Materia: "matemática", Ano: IntPtr(2021), Etapa: IntPtr(2)}.Matches(rec))
	require.False(t, SearchFilter{Materia: "Matemática", Ano: IntPtr(2020)}.Matches(rec))
	require.False(t, SearchFilter{Etapa: IntPtr(3)}.Matches(rec))
	require.False(t, SearchFilter{Materia: "Física"}.Matches(rec))

	rec.Ano = nil
	require.False(t, SearchFilter{Ano: IntPtr(2021)}.Matches(rec))
	require.True(t, SearchFilter{}.Matches(rec))
}

func TestPaginate(t *testing.T) {
	items := make([]int, 15)
	for i := range items {
		items[i] = i
	}

	second := Paginate(items, 2, 10)
	require.Equal(t, []int{10, 11, 12, 13, 14}, second.Items)
	require.Equal(t, 2, second.CurrentPage)
	require.Equal(t, 2, second.TotalPages)
	require.Equal(t, 15, second.TotalItems)
	require.Equal(t, 10, second.Limit)

	beyond := Paginate(items, 5, 10)
	require.Empty(t, beyond.Items)
	require.NotNil(t, beyond.Items)
	require.Equal(t, 2, beyond.TotalPages)
	require.Equal(t, 15, beyond.TotalItems)

	empty := Paginate([]int(nil), 1, 10)
	require.Empty(t, empty.Items)
	require.Equal(t, 1, empty.TotalPages)
	require.Equal(t, 0, empty.TotalItems)

	exact := Paginate(items[:10], 1, 5)
	require.Equal(t, 2, exact.TotalPages)
}

func TestPaginateHugePageStaysEmpty(t *testing.T) {
	items := []int{1, 2, 3}

	wrapped := Paginate(items, 1<<62+1, 4)
	require.Empty(t, wrapped.Items)
	require.Equal(t, 1, wrapped.TotalPages)
	require.Equal(t, 3, wrapped.TotalItems)

	largest := Paginate(items, math.MaxInt, 10)
	require.Empty(t, largest.Items)
	require.Equal(t, math.MaxInt, largest.CurrentPage)
	require.Equal(t, 1, largest.TotalPages)

	wide := Paginate(items, 1, math.MaxInt)
	require.Equal(t, []int{1, 2, 3}, wide.Items)
	require.Equal(t, 1, wide.TotalPages)
}

func sampleRecord() Record {
	return Record{
		ID:      "q-1",
		Materia: "Biologia",
		Topico:  "Citologia",
		Corpo:   []ContentBlock{{Tipo: BlockText, Conteudo: "Qual organela produz ATP?"}},
		Alternativas: []Alternative{
			{Letra: "A", Texto: "Ribossomo"},
			{Letra: "B", Texto: "Mitocôndria"},
			{Letra: "C", Texto: "Lisossomo"},
		},
		RespostaLetra: "B",
	}
}
