package model

import (
	"fmt"
	"strings"

	"github.com/born-ml/graspnet/internal/nn"
	"github.com/born-ml/graspnet/internal/tensor"
)

// Summary runs a zero image of inputSize×inputSize through the network in
// inference mode and tabulates every layer's output shape and parameter
// count.
func (g *GraspNet) Summary(inputSize int) string {
	if err := g.CheckInputSize(inputSize); err != nil {
		return err.Error()
	}
	training := g.training
	g.SetTraining(false)
	defer g.SetTraining(training)

	const rule = "----------------------------------------------------------------\n"
	var b strings.Builder
	b.WriteString(rule)
	fmt.Fprintf(&b, "%25s %25s %15s\n", "Layer (type)", "Output Shape", "Param #")
	b.WriteString(strings.ReplaceAll(rule, "-", "="))

	row := func(n int, m nn.Module, label string, out *tensor.Tensor) {
		name := fmt.Sprintf("%s-%d", layerType(m), n)
		if label != "" {
			name += " " + label
		}
		shape := append([]int{-1}, out.Shape()[1:]...)
		fmt.Fprintf(&b, "%25s %25s %15s\n", name, fmt.Sprint(shape), thousands(nn.CountParameters(m.Parameters())))
	}

	x := tensor.Zeros(tensor.Shape{1, g.cfg.InputChannels, inputSize, inputSize})
	n := 0
	for _, layer := range g.backbone.Layers() {
		n++
		x = layer.Forward(x)
		row(n, layer, "", x)
	}
	for i, head := range g.heads {
		n++
		row(n, head, "("+headNames[i]+")", head.Forward(x))
	}

	total := nn.CountParameters(g.Parameters())
	b.WriteString(strings.ReplaceAll(rule, "-", "="))
	fmt.Fprintf(&b, "Total params: %s\n", thousands(total))
	fmt.Fprintf(&b, "Trainable params: %s\n", thousands(total))
	b.WriteString("Non-trainable params: 0\n")
	b.WriteString(rule)
	return b.String()
}

func layerType(m nn.Module) string {
	name := fmt.Sprintf("%T", m)
	return name[strings.LastIndex(name, ".")+1:]
}

// thousands formats n with comma separators.
func thousands(n int) string {
	s := fmt.Sprint(n)
	if n < 0 {
		return "-" + thousands(-n)
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
