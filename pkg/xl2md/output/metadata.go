package output

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/width"

	"xl2md/pkg/xl2md/models"
)

// charsPerToken is the fixed characters-to-tokens ratio the chunk
// estimate assumes. It approximates mixed Japanese and English text.
const charsPerToken = 0.3

// keywordRe matches keyword candidates: ASCII letter runs, or runs of
// hiragana, katakana and kanji.
var keywordRe = regexp.MustCompile(`[a-zA-Z]+|[ぁ-んァ-ヶー一-龠]+`)

// MetadataInput carries everything metadata generation needs. Markdown
// must be the exact document written to OutputPath.
type MetadataInput struct {
	SourcePath  string
	OutputPath  string
	Markdown    string
	Sheets      []models.SheetFragment
	Refs        []models.CrossReference
	ChunkSize   int
	ConvertedAt time.Time
}

// BuildMetadata derives the companion metadata record from the merged
// document and the per-sheet fragments.
func BuildMetadata(in MetadataInput) *models.Metadata {
	meta := &models.Metadata{
		SourceFile:  filepath.Base(in.SourcePath),
		SourcePath:  in.SourcePath,
		ConvertedAt: in.ConvertedAt.Format(time.RFC3339),
		OutputFile:  filepath.Base(in.OutputPath),
		OutputPath:  in.OutputPath,
		TotalSheets: len(in.Sheets),
	}

	totalTables, totalImages := 0, 0
	for _, sheet := range in.Sheets {
		totalTables += sheet.TablesCount
		totalImages += sheet.ImagesCount
		meta.Sheets = append(meta.Sheets, models.SheetMetadata{
			Name:        sheet.Name,
			Index:       sheet.Index,
			CellRange:   sheet.CellRange,
			TablesCount: sheet.TablesCount,
			ImagesCount: sheet.ImagesCount,
			SectionInMD: "#" + Anchor(sheet.Name),
			Keywords:    ExtractKeywords(sheet.Content, 10),
		})
	}

	for _, ref := range in.Refs {
		meta.CrossReferences = append(meta.CrossReferences, models.ReferenceMetadata{
			From: fmt.Sprintf("%s!%s", ref.FromSheet, ref.FromCell),
			To:   fmt.Sprintf("%s!%s", ref.ToSheet, ref.ToCell),
			Type: string(ref.Kind),
		})
	}

	meta.Statistics = models.Statistics{
		TotalTables: totalTables,
		TotalImages: totalImages,
		TotalSizeKB: fileSizeKB(in.OutputPath),
	}
	meta.RAGOptimization = models.RAGOptimization{
		ChunkSize:       in.ChunkSize,
		EstimatedChunks: EstimateChunks(in.Markdown, in.ChunkSize),
	}
	return meta
}

// EstimateChunks estimates how many chunks of chunkSize tokens the
// document splits into, from rune count and the fixed ratio. It is never
// less than 1.
func EstimateChunks(markdown string, chunkSize int) int {
	if chunkSize <= 0 {
		return 1
	}
	tokens := float64(utf8.RuneCountInString(markdown)) * charsPerToken
	chunks := int(tokens)/chunkSize + 1
	if chunks < 1 {
		chunks = 1
	}
	return chunks
}

// ExtractKeywords ranks keyword candidates by frequency and returns the
// top limit entries. Full-width ASCII is folded to half-width before
// matching so "ＡＢＣ" and "ABC" count as one keyword. Candidates shorter
// than two characters are dropped. Ties rank by first occurrence, so the
// result is deterministic for a given content string.
func ExtractKeywords(content string, limit int) []string {
	folded := width.Narrow.String(content)
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, match := range keywordRe.FindAllString(folded, -1) {
		if utf8.RuneCountInString(match) < 2 {
			continue
		}
		word := strings.ToLower(match)
		counts[word]++
		if _, ok := firstSeen[word]; !ok {
			firstSeen[word] = i
		}
	}

	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return firstSeen[words[i]] < firstSeen[words[j]]
	})
	if len(words) > limit {
		words = words[:limit]
	}
	return words
}

func fileSizeKB(path string) float64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return math.Round(float64(info.Size())/1024*100) / 100
}
