package kvcache

import "math"

// q8Store is a quantized shadow copy of a sequence's K/V rows, used to
// speed up reads and attention scoring when the full sequence fits within
// it. It quantizes each row to int8 with a per-row scale factor.
type q8Store struct {
	hiddenDim int
	capacity  int
	length    int
	keyScale  []float32
	valScale  []float32
	keys      [][]int8
	values    [][]int8
}

func newQ8Store(hiddenDim, capacity int) *q8Store {
	return &q8Store{hiddenDim: hiddenDim, capacity: capacity}
}

func (q *q8Store) seqLen() int { return q.length }

// append adds one row; returns false if the store is at capacity.
func (q *q8Store) append(keys, values []float32) bool {
	if q.length >= q.capacity {
		return false
	}
	kq, ks := quantizeRow(keys)
	vq, vs := quantizeRow(values)
	q.keys = append(q.keys, kq)
	q.values = append(q.values, vq)
	q.keyScale = append(q.keyScale, ks)
	q.valScale = append(q.valScale, vs)
	q.length++
	return true
}

func (q *q8Store) reset() {
	q.keys, q.values, q.keyScale, q.valScale = nil, nil, nil, nil
	q.length = 0
}

func (q *q8Store) readKeys(pos int, out []float32) {
	dequantizeRow(q.keys[pos], q.keyScale[pos], out)
}

func (q *q8Store) readValues(pos int, out []float32) {
	dequantizeRow(q.values[pos], q.valScale[pos], out)
}

// attentionScores computes dot(query, key_row) for every row, reconstructing
// float32 keys from their quantized form first.
func (q *q8Store) attentionScores(query []float32, scoresOut []float32) {
	row := make([]float32, q.hiddenDim)
	for i := 0; i < q.length; i++ {
		dequantizeRow(q.keys[i], q.keyScale[i], row)
		scoresOut[i] = dotProduct(query, row)
	}
}

func quantizeRow(row []float32) ([]int8, float32) {
	var maxAbs float32
	for _, v := range row {
		if a := float32(math.Abs(float64(v))); a > maxAbs {
			maxAbs = a
		}
	}
	scale := maxAbs / 127
	if scale == 0 {
		scale = 1
	}
	q := make([]int8, len(row))
	for i, v := range row {
		q[i] = int8(math.Round(float64(v / scale)))
	}
	return q, scale
}

func dequantizeRow(q []int8, scale float32, out []float32) {
	for i, v := range q {
		out[i] = float32(v) * scale
	}
}

func dotProduct(a, b []float32) float32 {
	var sum float32
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
