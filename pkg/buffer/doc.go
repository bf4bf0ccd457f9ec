// Package buffer provides a thread-safe sliding window over an unbounded
// element stream.
//
// A Window keeps the tail of a logically infinite sequence in memory and
// addresses elements by their absolute position in that sequence. Producers
// append at the high end; consumers read any retained range and free storage
// from the low end once a prefix has been fully consumed. The absolute
// positions never rewind: dropping storage does not change the total element
// count, which makes the Window suitable for sample-indexed audio feeds where
// "how many samples have ever arrived" and "which samples are still resident"
// are different questions.
//
// Example usage:
//
//	w := buffer.NewWindow[float32](16000)
//
//	w.Append(samples)            // samples occupy [0, len(samples))
//	w.Append(more)               // more occupies [len(samples), ...)
//
//	chunk, _ := w.Slice(0, 320)  // read the first 320 samples
//	w.DropBefore(320)            // free their storage
//
//	w.Total()                    // still counts the dropped prefix
package buffer
