package archive

// Thread is an OP plus its replies in the order the backend listed them.
type Thread struct {
	OP      Post   `json:"op"`
	Replies []Post `json:"posts"`
}

// Num is the thread number, the number of its OP.
func (t Thread) Num() int64 {
	return t.OP.Num
}

// Posts returns the OP followed by every reply.
func (t Thread) Posts() []Post {
	out := make([]Post, 0, len(t.Replies)+1)
	out = append(out, t.OP)
	out = append(out, t.Replies...)
	return out
}
