package assistant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const legacyText = `Claro! Preparei uma questão sobre fotossíntese.

**Enunciado:** Qual é o principal carboidrato produzido na fotossíntese?
A) Sacarose
B) Amido
C) Glicose
D) Celulose
E) Frutose

**Gabarito:** C`

const bracketedLegacyText = `Enunciado: Considere o vetor [2]. Quantas componentes ele tem?
A) Nenhuma
B) Uma
C) Duas
Gabarito: B`

func TestLegacyParserRoundTrip(t *testing.T) {
	parsed, ok := legacyParser{}.TryParse(legacyText)
	require.True(t, ok)
	require.Len(t, parsed.Questions, 1)
	rec := parsed.Questions[0]
	require.Len(t, rec.Alternativas, 5)
	require.Equal(t, "C", rec.RespostaLetra)
	require.Equal(t, "Qual é o principal carboidrato produzido na fotossíntese?", rec.Stem())
	require.Equal(t, "Glicose", rec.Alternativas[2].Texto)
	require.Equal(t, "Claro! Preparei uma questão sobre fotossíntese.", parsed.Commentary)
	require.NoError(t, rec.Validate())
}

func TestLegacyParserWithoutGabaritoReturnsNoResult(t *testing.T) {
	text := strings.Replace(legacyText, "**Gabarito:** C", "", 1)
	parsed, ok := legacyParser{}.TryParse(text)
	require.False(t, ok)
	require.Empty(t, parsed.Questions)
}

func TestLegacyParserRequiresAnswerAmongAlternatives(t *testing.T) {
	text := "Enunciado: Quanto é 2+2?\nA) 3\nB) 4\nResposta Correta: D"
	_, ok := legacyParser{}.TryParse(text)
	require.False(t, ok)
}

func TestLegacyParserRequiresTwoAlternatives(t *testing.T) {
	text := "Enunciado: Quanto é 2+2?\nA) 4\nResposta Correta: A"
	_, ok := legacyParser{}.TryParse(text)
	require.False(t, ok)
}

func TestLegacyParserVariants(t *testing.T) {
	text := "Enunciado - Qual planeta é o maior?\n(a) Terra\n(b) Júpiter\n(c) Marte\nResposta correta: letra B\n\n" +
		"Enunciado: Qual gás respiramos?\nA. Oxigênio\nB. Hélio\nGabarito: (A)"
	parsed, ok := legacyParser{}.TryParse(text)
	require.True(t, ok)
	require.Len(t, parsed.Questions, 2)
	require.Equal(t, "B", parsed.Questions[0].RespostaLetra)
	require.Len(t, parsed.Questions[0].Alternativas, 3)
	require.Equal(t, "A", parsed.Questions[1].RespostaLetra)
	require.Empty(t, parsed.Commentary)
}

func TestLegacyParserLowercaseAnswerLetter(t *testing.T) {
	text := "Enunciado: Quanto é 2+2?\nA) 3\nB) 4\nC) 5\nGabarito: b"
	parsed, ok := legacyParser{}.TryParse(text)
	require.True(t, ok)
	require.Equal(t, "B", parsed.Questions[0].RespostaLetra)
}

func TestLegacyParserIgnoresPlainText(t *testing.T) {
	_, ok := legacyParser{}.TryParse("Desculpe, não posso ajudar com isso.")
	require.False(t, ok)
}

func TestStructuredParserEnvelope(t *testing.T) {
	text := `{"comentario":"Boa sorte!","questoes":[
		{"enunciado":"Qual organela faz fotossíntese?","alternativas":[{"letra":"a","texto":"Cloroplasto"},{"letra":"b","texto":"Núcleo"}],"resposta_letra":"A","materia":null,"topico":null},
		{"enunciado":"","alternativas":[{"letra":"A","texto":"x"},{"letra":"B","texto":"y"}],"resposta_letra":"A"},
		{"enunciado":"Sem resposta","alternativas":[{"letra":"A","texto":"x"},{"letra":"B","texto":"y"}],"resposta_letra":"C"}
	]}`
	parsed, ok := structuredParser{}.TryParse(text)
	require.True(t, ok)
	require.Equal(t, "Boa sorte!", parsed.Commentary)
	require.Len(t, parsed.Questions, 1)
	require.Equal(t, "A", parsed.Questions[0].Alternativas[0].Letra)
	require.Equal(t, "Qual organela faz fotossíntese?", parsed.Questions[0].Stem())
}

func TestStructuredParserBareArrayAndFences(t *testing.T) {
	text := "```json\n[{\"enunciado\":\"2+2?\",\"alternativas\":[{\"letra\":\"A\",\"texto\":\"4\"},{\"letra\":\"B\",\"texto\":\"5\"}],\"resposta_letra\":\"A\"}]\n```"
	parsed, ok := structuredParser{}.TryParse(text)
	require.True(t, ok)
	require.Len(t, parsed.Questions, 1)
}

func TestStructuredParserRejectsFreeText(t *testing.T) {
	_, ok := structuredParser{}.TryParse(legacyText)
	require.False(t, ok)
}

func TestStructuredParserLeavesBracketedProse(t *testing.T) {
	_, ok := structuredParser{}.TryParse(bracketedLegacyText)
	require.False(t, ok)

	parsed, ok := legacyParser{}.TryParse(bracketedLegacyText)
	require.True(t, ok)
	require.Len(t, parsed.Questions, 1)
}

func TestStructuredParserAcceptsObjectsInProse(t *testing.T) {
	text := "Aqui estão as questões:\n[{\"enunciado\":\"2+2?\",\"alternativas\":[{\"letra\":\"A\",\"texto\":\"4\"},{\"letra\":\"B\",\"texto\":\"5\"}],\"resposta_letra\":\"A\"}]"
	parsed, ok := structuredParser{}.TryParse(text)
	require.True(t, ok)
	require.Len(t, parsed.Questions, 1)
}

func TestStructuredParserRecognizesJSONWithoutValidQuestions(t *testing.T) {
	parsed, ok := structuredParser{}.TryParse(`{"questoes":[{"enunciado":"x","alternativas":[],"resposta_letra":"A"}]}`)
	require.True(t, ok)
	require.Empty(t, parsed.Questions)
}
