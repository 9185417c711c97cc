package rag

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/landrag/internal/vectorstore"
)

// RegistryLinkFormat is the national registry page of a land plot.
const RegistryLinkFormat = "https://eri2.nca.by/guest/investmentObject/%d#main"

// RegistryLink returns the registry page for a plot id.
func RegistryLink(id int64) string {
	return fmt.Sprintf(RegistryLinkFormat, id)
}

// SystemPrompt frames every generation request.
var SystemPrompt = strings.Join([]string{
	"You are a straightforward and professional assistant specialized in real estate and land plots.",
	"",
	"CORE RULES:",
	"1. Answer strictly using only the context provided below. Land plot context is written in Russian, for example:",
	"Площадь участка: 0.25 га. Право: Право собственности. Есть электроснабжение. Ограничения: охранные зоны электрической сети.",
	"The id field of a land plot is its number in the National Cadastral Agency registry.",
	"Площадь участка is the plot area in hectares. Convert square meters with ha = sq / 10000 when the user asks in square meters.",
	"Право is the ownership right. Ограничения are land use restrictions tied to the plot location.",
	"2. Never invent facts, numbers, identifiers or links that are not present in the context.",
	"3. If the context does not contain the answer, say so explicitly.",
	"4. Detect the user's language and answer in the same language.",
	"5. When you return land plots, give every parameter present in the context and the registry id of each plot.",
	"6. Give a registry link for every plot you return, in the form " + fmt.Sprintf(RegistryLinkFormat, 58079) +
		" with 58079 replaced by the plot id. Never produce a link when the id is missing.",
	"7. When returning several plots, number them '1. ', '2. ' and so on, put each parameter on its own line," +
		" and separate plots with exactly one blank line.",
}, "\n")

// textKeys hold the retrievable text of a point, in lookup order.
var textKeys = []string{"text", "description"}

// omitKeys are payload fields never rendered as source metadata.
var omitKeys = map[string]bool{
	"text":        true,
	"description": true,
	"geometry":    true,
	"location":    true,
}

// BuildContext renders hits as "Source:{metadata}\nContent:{text}" entries
// in the given order, separated by a blank line.
func BuildContext(hits []vectorstore.ScoredPoint) string {
	entries := make([]string, 0, len(hits))
	for _, h := range hits {
		entries = append(entries, "Source:"+renderMetadata(h.Payload)+"\nContent:"+pointText(h.Payload))
	}
	return strings.Join(entries, "\n\n")
}

func pointText(payload map[string]any) string {
	for _, k := range textKeys {
		if s, ok := payload[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// renderMetadata formats the scalar payload fields sorted by key. Null
// and nested values are left out.
func renderMetadata(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if !omitKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := scalar(payload[k])
		if !ok {
			continue
		}
		parts = append(parts, k+": "+v)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func scalar(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return "", false
	}
}

// humanMessage carries the retrieved context and the question.
func humanMessage(contextBlock, question string) string {
	return "CONTEXT FROM DOCUMENTS:\n" + contextBlock + "\n\nQUESTION:\n" + question
}
