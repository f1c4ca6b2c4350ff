package chunker

import (
	"strings"
)

// Chunk is a bounded span of a document's text, the unit of retrieval.
type Chunk struct {
	Index         int
	Content       string
	DocumentTitle string
}

// Splitter cuts document text into overlapping chunks on sentence
// boundaries. A chunk never splits a sentence: a single sentence longer
// than the size limit is emitted whole.
type Splitter struct {
	maxChunkSize int
	overlapWords int
}

func New(maxChunkSize, overlapWords int) *Splitter {
	return &Splitter{
		maxChunkSize: maxChunkSize,
		overlapWords: overlapWords,
	}
}

func (s *Splitter) Split(content, documentTitle string) []Chunk {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\n", " ")

	sentences := strings.Split(normalized, ". ")

	var chunks []Chunk
	var current string
	index := 0

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		if !strings.HasSuffix(sentence, ".") {
			sentence += "."
		}

		if len(current)+len(sentence) > s.maxChunkSize {
			if current != "" {
				chunks = append(chunks, Chunk{
					Index:         index,
					Content:       strings.TrimSpace(current),
					DocumentTitle: documentTitle,
				})
				index++

				// Seed the next chunk with the tail of the one just closed.
				words := strings.Fields(current)
				if len(words) > s.overlapWords {
					words = words[len(words)-s.overlapWords:]
				}
				current = strings.Join(words, " ") + " " + sentence
			} else {
				current = sentence
			}
		} else {
			if current == "" {
				current = sentence
			} else {
				current += " " + sentence
			}
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, Chunk{
			Index:         index,
			Content:       strings.TrimSpace(current),
			DocumentTitle: documentTitle,
		})
	}

	return chunks
}
