package batch

// Partition splits items into contiguous packets of size. Every packet but
// the last holds exactly size items. Concatenating the packets gives items
// back unchanged. A size below one puts everything in a single packet.
func Partition[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || len(items) <= size {
		return [][]T{items}
	}

	packets := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		packets = append(packets, items[start:end:end])
	}
	return packets
}
