package utils

// Chunk splits a slice into consecutive parts of at most size elements.
// A size <= 0 returns the whole slice as a single chunk.
// Used for splitting analytics request dimensions into batches that
// DHIS2 can answer without timing out.
func Chunk[T any](slice []T, size int) [][]T {
	if len(slice) == 0 {
		return [][]T{}
	}
	if size <= 0 || size >= len(slice) {
		return [][]T{slice}
	}

	chunks := make([][]T, 0, (len(slice)+size-1)/size)
	for i := 0; i < len(slice); i += size {
		end := i + size
		if end > len(slice) {
			end = len(slice)
		}
		chunks = append(chunks, slice[i:end])
	}
	return chunks
}

// Unique removes duplicates and empty strings, keeping the first occurrence.
func Unique(slice []string) []string {
	seen := make(map[string]bool, len(slice))
	out := make([]string, 0, len(slice))
	for _, s := range slice {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
