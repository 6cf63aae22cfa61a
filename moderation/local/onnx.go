package local

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/image/draw"

	ort "github.com/yalue/onnxruntime_go"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// scored is one (label, probability) pair of a classification head output.
type scored struct {
	label string
	score float64
}

// textModel is an ONNX sequence-classification model plus its tokenizer and
// label names. A model directory holds model.onnx, vocab.txt, and labels.txt.
type textModel struct {
	session    *ort.DynamicAdvancedSession
	tokenizer  *wordpieceTokenizer
	labels     []string
	inputNames []string
}

func loadTextModel(root, name string) (*textModel, error) {
	dir := modelDir(root, name)
	if err := initORT(runtimeLibPath(root)); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	modelPath := filepath.Join(dir, "model.onnx")
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}

	// Distilled models take two inputs, full BERT variants take three; keep
	// the model's own input order.
	var inputNames []string
	for _, inp := range inputs {
		switch inp.Name {
		case "input_ids", "attention_mask", "token_type_ids":
			inputNames = append(inputNames, inp.Name)
		default:
			return nil, fmt.Errorf("onnx: unexpected model input %q", inp.Name)
		}
	}
	if len(inputNames) < 2 {
		return nil, fmt.Errorf("onnx: model missing input_ids/attention_mask inputs")
	}

	tokenizer, err := loadTokenizer(filepath.Join(dir, "vocab.txt"))
	if err != nil {
		return nil, err
	}
	labels, err := loadLabels(filepath.Join(dir, "labels.txt"))
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(4)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &textModel{
		session:    session,
		tokenizer:  tokenizer,
		labels:     labels,
		inputNames: inputNames,
	}, nil
}

// classify runs the model over one text and returns (label, probability)
// pairs in descending probability order.
func (m *textModel) classify(text string) ([]scored, error) {
	inputIDs, attentionMask := m.tokenizer.encode(text)
	shape := ort.NewShape(1, maxSeqLen)

	var inputs []ort.Value
	destroy := func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}
	defer destroy()

	for _, name := range m.inputNames {
		var data []int64
		switch name {
		case "input_ids":
			data = inputIDs
		case "attention_mask":
			data = attentionMask
		case "token_type_ids":
			data = make([]int64, maxSeqLen)
		}
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("onnx: failed to create %s tensor: %w", name, err)
		}
		inputs = append(inputs, t)
	}

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(m.labels))))
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := m.session.Run(inputs, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("onnx: inference failed: %w", err)
	}

	return rankLogits(out.GetData(), m.labels), nil
}

func (m *textModel) close() error {
	return m.session.Destroy()
}

// imageModel is an ONNX image-classification model. A model directory holds
// model.onnx and labels.txt; input is a [1,3,H,W] pixel tensor.
type imageModel struct {
	session   *ort.DynamicAdvancedSession
	labels    []string
	inputName string
	height    int
	width     int
}

func loadImageModel(root, name string) (*imageModel, error) {
	dir := modelDir(root, name)
	if err := initORT(runtimeLibPath(root)); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	modelPath := filepath.Join(dir, "model.onnx")
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: expected single-input classification model")
	}

	height, width := 224, 224
	if dims := inputs[0].Dimensions; len(dims) == 4 {
		if dims[2] > 0 {
			height = int(dims[2])
		}
		if dims[3] > 0 {
			width = int(dims[3])
		}
	}

	labels, err := loadLabels(filepath.Join(dir, "labels.txt"))
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(4)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &imageModel{
		session:   session,
		labels:    labels,
		inputName: inputs[0].Name,
		height:    height,
		width:     width,
	}, nil
}

// classify scales the image to the model's input size, normalizes pixels to
// [-1, 1], and returns (label, probability) pairs in descending order.
func (m *imageModel) classify(img image.Image) ([]scored, error) {
	scaled := image.NewRGBA(image.Rect(0, 0, m.width, m.height))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	pixels := make([]float32, 3*m.height*m.width)
	plane := m.height * m.width
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			r, g, b, _ := scaled.At(x, y).RGBA()
			i := y*m.width + x
			pixels[i] = (float32(r>>8)/255.0 - 0.5) / 0.5
			pixels[plane+i] = (float32(g>>8)/255.0 - 0.5) / 0.5
			pixels[2*plane+i] = (float32(b>>8)/255.0 - 0.5) / 0.5
		}
	}

	in, err := ort.NewTensor(ort.NewShape(1, 3, int64(m.height), int64(m.width)), pixels)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create pixel tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(m.labels))))
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := m.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("onnx: inference failed: %w", err)
	}

	return rankLogits(out.GetData(), m.labels), nil
}

func (m *imageModel) close() error {
	return m.session.Destroy()
}

// rankLogits applies softmax over the logits and pairs each probability with
// its label name, sorted descending.
func rankLogits(logits []float32, labels []string) []scored {
	n := len(labels)
	if len(logits) < n {
		n = len(logits)
	}

	maxLogit := float64(math.Inf(-1))
	for i := 0; i < n; i++ {
		if float64(logits[i]) > maxLogit {
			maxLogit = float64(logits[i])
		}
	}
	var sum float64
	exps := make([]float64, n)
	for i := 0; i < n; i++ {
		exps[i] = math.Exp(float64(logits[i]) - maxLogit)
		sum += exps[i]
	}

	out := make([]scored, n)
	for i := 0; i < n; i++ {
		out[i] = scored{label: labels[i], score: exps[i] / sum}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

// loadLabels reads one label per line, in output-index order.
func loadLabels(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("labels: %w", err)
	}
	var labels []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			labels = append(labels, line)
		}
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels: file is empty: %s", path)
	}
	return labels, nil
}

// modelDir maps a model name (possibly org/name shaped) onto a directory
// under the models root.
func modelDir(root, name string) string {
	return filepath.Join(root, filepath.FromSlash(name))
}

// runtimeLibPath resolves the ONNX Runtime shared library, shipped at the
// top of the models directory unless overridden by ONNXRUNTIME_LIB_PATH.
func runtimeLibPath(root string) string {
	if p := os.Getenv("ONNXRUNTIME_LIB_PATH"); p != "" {
		return p
	}
	return filepath.Join(root, "libonnxruntime.so")
}
