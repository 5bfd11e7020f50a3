// Package spy reads one-to-one ring buffers without consuming them.
//
// A ring buffer is a power-of-two data region followed by a trailer holding the
// producer (tail) and consumer (head) positions. The record and trailer layout
// match the writer side bit for bit, so a spy can attach to a region written by
// another process and follow its traffic while the real consumer keeps running.
// A spy only ever advances its own private cursor; it never stores into the
// mapped region.
package spy
