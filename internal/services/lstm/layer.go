package lstm

import "math"

// layer is one LSTM layer. Gate rows are ordered input, forget, cell, output;
// each weight matrix is row-major with 4*units rows.
type layer struct {
	in, units int
	wx        []float64 // 4*units x in
	wh        []float64 // 4*units x units
	b         []float64 // 4*units
}

func (l *layer) size() int { return 4*l.units*l.in + 4*l.units*l.units + 4*l.units }

// carve points the layer weights at consecutive regions of buf and returns the rest.
func (l *layer) carve(buf []float64) []float64 {
	g := 4 * l.units
	l.wx, buf = buf[:g*l.in:g*l.in], buf[g*l.in:]
	l.wh, buf = buf[:g*l.units:g*l.units], buf[g*l.units:]
	l.b, buf = buf[:g:g], buf[g:]
	return buf
}

// trace keeps the per-step activations needed by backward.
type trace struct {
	xs    [][]float64
	gates [][]float64 // activated i, f, g, o
	cs    [][]float64
	hs    [][]float64
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// step advances one time step in place: z is scratch of 4*units,
// gates may be nil when the activations are not needed afterwards.
func (l *layer) step(x, hPrev, cPrev, h, c, z, gates []float64) {
	H := l.units
	for r := 0; r < 4*H; r++ {
		s := l.b[r]
		row := l.wx[r*l.in : (r+1)*l.in]
		for k, v := range x {
			s += row[k] * v
		}
		row = l.wh[r*H : (r+1)*H]
		for k, v := range hPrev {
			s += row[k] * v
		}
		z[r] = s
	}
	for j := 0; j < H; j++ {
		i := sigmoid(z[j])
		f := sigmoid(z[H+j])
		g := math.Tanh(z[2*H+j])
		o := sigmoid(z[3*H+j])
		c[j] = f*cPrev[j] + i*g
		h[j] = o * math.Tanh(c[j])
		if gates != nil {
			gates[j], gates[H+j], gates[2*H+j], gates[3*H+j] = i, f, g, o
		}
	}
}

// forward runs the whole sequence and records a trace.
func (l *layer) forward(xs [][]float64) *trace {
	T, H := len(xs), l.units
	tr := &trace{
		xs:    xs,
		gates: make([][]float64, T),
		cs:    make([][]float64, T),
		hs:    make([][]float64, T),
	}
	zero := make([]float64, H)
	hPrev, cPrev := zero, zero
	z := make([]float64, 4*H)
	for t := 0; t < T; t++ {
		tr.gates[t] = make([]float64, 4*H)
		tr.cs[t] = make([]float64, H)
		tr.hs[t] = make([]float64, H)
		l.step(xs[t], hPrev, cPrev, tr.hs[t], tr.cs[t], z, tr.gates[t])
		hPrev, cPrev = tr.hs[t], tr.cs[t]
	}
	return tr
}

// last runs the sequence keeping only the running state and returns every h
// when keepAll is set, otherwise only the final one.
func (l *layer) last(xs [][]float64, keepAll bool) [][]float64 {
	H := l.units
	h, c := make([]float64, H), make([]float64, H)
	hn, cn := make([]float64, H), make([]float64, H)
	z := make([]float64, 4*H)
	var out [][]float64
	for _, x := range xs {
		l.step(x, h, c, hn, cn, z, nil)
		h, hn = hn, h
		c, cn = cn, c
		if keepAll {
			out = append(out, append([]float64(nil), h...))
		}
	}
	if !keepAll {
		out = [][]float64{h}
	}
	return out
}

// backward accumulates parameter gradients into g given dL/dh_t for each step
// (nil entries are zero) and returns dL/dx_t when wantDX is set.
func (l *layer) backward(tr *trace, dhs [][]float64, g *layer, wantDX bool) [][]float64 {
	T, H := len(tr.xs), l.units
	zero := make([]float64, H)
	dhNext := make([]float64, H)
	dcNext := make([]float64, H)
	dhTmp := make([]float64, H)
	dz := make([]float64, 4*H)
	var dxs [][]float64
	if wantDX {
		dxs = make([][]float64, T)
	}

	for t := T - 1; t >= 0; t-- {
		hPrev, cPrev := zero, zero
		if t > 0 {
			hPrev, cPrev = tr.hs[t-1], tr.cs[t-1]
		}
		gt, ct := tr.gates[t], tr.cs[t]
		for j := 0; j < H; j++ {
			dh := dhNext[j]
			if dhs[t] != nil {
				dh += dhs[t][j]
			}
			i, f, gg, o := gt[j], gt[H+j], gt[2*H+j], gt[3*H+j]
			tc := math.Tanh(ct[j])
			do := dh * tc
			dc := dh*o*(1-tc*tc) + dcNext[j]
			dcNext[j] = dc * f
			dz[j] = dc * gg * i * (1 - i)
			dz[H+j] = dc * cPrev[j] * f * (1 - f)
			dz[2*H+j] = dc * i * (1 - gg*gg)
			dz[3*H+j] = do * o * (1 - o)
		}

		x := tr.xs[t]
		for k := range dhTmp {
			dhTmp[k] = 0
		}
		var dx []float64
		if wantDX {
			dx = make([]float64, l.in)
		}
		for r := 0; r < 4*H; r++ {
			d := dz[r]
			if d == 0 {
				continue
			}
			g.b[r] += d
			wxRow, gxRow := l.wx[r*l.in:(r+1)*l.in], g.wx[r*l.in:(r+1)*l.in]
			for k, v := range x {
				gxRow[k] += d * v
				if wantDX {
					dx[k] += wxRow[k] * d
				}
			}
			whRow, ghRow := l.wh[r*H:(r+1)*H], g.wh[r*H:(r+1)*H]
			for k, v := range hPrev {
				ghRow[k] += d * v
				dhTmp[k] += whRow[k] * d
			}
		}
		dhNext, dhTmp = dhTmp, dhNext
		if wantDX {
			dxs[t] = dx
		}
	}
	return dxs
}
