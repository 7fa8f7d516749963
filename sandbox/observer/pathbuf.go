// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package observer

// pathBuf is a growable byte buffer for in-place path surgery. The
// resolver rewrites paths as it walks them (collapsing dot segments,
// splicing in symlink targets), and every rewrite goes through the
// two bounds-checked operations below rather than raw slice indexing.
type pathBuf struct {
	b []byte
}

func newPathBuf(path string) *pathBuf {
	return &pathBuf{b: []byte(path)}
}

func (p *pathBuf) len() int { return len(p.b) }

func (p *pathBuf) byteAt(i int) byte { return p.b[i] }

func (p *pathBuf) String() string { return string(p.b) }

// slice returns the bytes in [start, end) as a string.
func (p *pathBuf) slice(start, end int) string {
	return string(p.b[start:end])
}

// splice replaces the bytes in [start, end) with repl, growing or
// shrinking the buffer as needed.
func (p *pathBuf) splice(start, end int, repl string) {
	if start < 0 || end < start || end > len(p.b) {
		panic("pathbuf: splice out of range")
	}
	out := make([]byte, 0, start+len(repl)+len(p.b)-end)
	out = append(out, p.b[:start]...)
	out = append(out, repl...)
	out = append(out, p.b[end:]...)
	p.b = out
}

// shiftLeft removes the bytes in [start, end), shifting the suffix
// left over them.
func (p *pathBuf) shiftLeft(start, end int) {
	if start < 0 || end < start || end > len(p.b) {
		panic("pathbuf: shift out of range")
	}
	p.b = append(p.b[:start], p.b[end:]...)
}
