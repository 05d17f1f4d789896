package protocol

import "bytes"

// ChunkLines splits data into chunks of at least size bytes, extending every chunk
// forward to the next '\n' so no line is cut in half. The last chunk holds whatever
// remains. A non-positive size uses DefaultChunkSize.
//
// An empty input yields a single empty chunk so that empty files are still transmitted.
func ChunkLines(data []byte, size int) [][]byte {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if len(data) == 0 {
		return [][]byte{{}}
	}

	var chunks [][]byte
	for len(data) > 0 {
		end := min(size, len(data))
		if data[end-1] != '\n' && end < len(data) {
			if nl := bytes.IndexByte(data[end:], '\n'); nl >= 0 {
				end += nl + 1
			} else {
				end = len(data)
			}
		}
		chunks = append(chunks, data[:end])
		data = data[end:]
	}
	return chunks
}
