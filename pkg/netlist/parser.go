package netlist

import (
	"bufio"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

type NetlistData struct {
	Elements  []Element             // Circuit elements
	Models    map[string]ModelParam // Model parameters
	HasTran   bool
	TranParam TranParam
	Options   map[string]string // .options key=value, keys lowercased
	Title     string            // Circuit title
}

type TranParam struct {
	TStep  float64 // timestep
	TStop  float64 // stop time
	TStart float64 // start time
}

type Element struct {
	Type   string   // Part type (R, V, I, C, L, D, M, Q)
	Name   string   // Part name
	Nodes  []string // Node names
	Tokens []string // Parameter tokens, numbers normalized to plain floats
}

type ModelParam struct {
	Type   string
	Name   string
	Params map[string]float64
}

// unitMap holds the decimal exponent of each scale suffix. Suffixes are case
// insensitive, so M is milli and MEG is mega.
var unitMap = map[string]int{
	"t":   12,  // tera
	"g":   9,   // giga
	"meg": 6,   // mega
	"k":   3,   // kilo
	"m":   -3,  // milli
	"u":   -6,  // micro
	"n":   -9,  // nano
	"p":   -12, // pico
	"f":   -15, // femto
}

var (
	// number, optional scale, optional unit name (10uF, 2.2kOhm, 100ns)
	valueRe = regexp.MustCompile(`(?i)^([-+]?\d*\.?\d+(?:e[-+]?\d+)?)(meg|[tgkmunpf])?(ohm|hz|[fhvas])?$`)
	spaceRe = regexp.MustCompile(`\s+`)
)

func Parse(input string) (*NetlistData, error) {
	scanner := bufio.NewScanner(strings.NewReader(input))
	netlistData := &NetlistData{
		Models:  make(map[string]ModelParam),
		Options: make(map[string]string),
	}

	// Title or comment
	if scanner.Scan() {
		netlistData.Title = strings.TrimPrefix(scanner.Text(), "*")
		netlistData.Title = strings.TrimSpace(netlistData.Title)
	}

	var currentLine string
	flush := func() error {
		if currentLine == "" {
			return nil
		}
		err := parseLine(netlistData, currentLine)
		currentLine = ""
		return err
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Inline comment
		if idx := strings.Index(line, "*"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if len(line) == 0 {
			continue
		}

		// Line continue
		if strings.HasPrefix(line, "+") {
			if currentLine != "" {
				currentLine += " " + strings.TrimSpace(line[1:])
			}
			continue
		}

		if err := flush(); err != nil {
			return nil, err
		}
		currentLine = line
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading netlist: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if err := resolveModels(netlistData); err != nil {
		return nil, err
	}
	return netlistData, nil
}

func parseLine(netlistData *NetlistData, line string) error {
	line = spaceRe.ReplaceAllString(line, " ")

	if strings.HasPrefix(line, ".") {
		return parseDotOperator(netlistData, line)
	}

	element, err := parseElement(line)
	if err != nil {
		return err
	}
	netlistData.Elements = append(netlistData.Elements, *element)
	return nil
}

// Parse .tran, .options, .model, .end
func parseDotOperator(netlistData *NetlistData, line string) error {
	var err error

	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case ".model":
		return parseModel(netlistData, fields[1:])

	case ".tran":
		if len(fields) < 3 {
			return fmt.Errorf("insufficient tran parameters, need at least tstep and tstop")
		}
		netlistData.HasTran = true
		netlistData.TranParam.TStep, err = ParseValue(fields[1])
		if err != nil {
			return fmt.Errorf("invalid tstep: %w", err)
		}
		netlistData.TranParam.TStop, err = ParseValue(fields[2])
		if err != nil {
			return fmt.Errorf("invalid tstop: %w", err)
		}
		if len(fields) > 3 {
			netlistData.TranParam.TStart, err = ParseValue(fields[3])
			if err != nil {
				return fmt.Errorf("invalid tstart: %w", err)
			}
		}
		if netlistData.TranParam.TStep <= 0 || netlistData.TranParam.TStop <= netlistData.TranParam.TStart {
			return fmt.Errorf("invalid tran range: tstep=%g tstop=%g tstart=%g",
				netlistData.TranParam.TStep, netlistData.TranParam.TStop, netlistData.TranParam.TStart)
		}

	case ".options", ".option":
		for _, field := range fields[1:] {
			key, value, ok := strings.Cut(field, "=")
			if !ok || key == "" {
				return fmt.Errorf("invalid option: %s", field)
			}
			netlistData.Options[strings.ToLower(key)] = value
		}

	case ".end":

	default:
		return fmt.Errorf("unsupported analysis type: %s", fields[0])
	}

	return nil
}

// modelDefaults lists the parameters each model type carries, in token order.
var modelDefaults = map[string][]struct {
	key   string
	value float64
}{
	"D": {
		{"is", 1e-14}, // Saturation current
		{"n", 1.0},    // Emission coefficient
	},
	"NPN": {
		{"is", 1e-16}, // Transport saturation current
		{"bf", 100},   // Forward beta
		{"br", 1},     // Reverse beta
		{"vaf", 100},  // Forward Early voltage
		{"nf", 1},     // Forward emission coefficient
		{"nr", 1},     // Reverse emission coefficient
	},
}

func init() {
	modelDefaults["PNP"] = modelDefaults["NPN"]
}

// parseModel reads `.model NAME D(is=1e-14 n=1)` and `.model NAME NPN(bf=200)`.
func parseModel(netlistData *NetlistData, fields []string) error {
	if len(fields) < 2 {
		return fmt.Errorf("insufficient model parameters")
	}

	modelName := fields[0]
	rest := strings.Join(fields[1:], " ")
	rest = strings.ReplaceAll(rest, "(", " ")
	rest = strings.ReplaceAll(rest, ")", " ")
	words := strings.Fields(rest)

	modelType := strings.ToUpper(words[0])
	defaults, ok := modelDefaults[modelType]
	if !ok {
		return fmt.Errorf("unsupported model type: %s", modelType)
	}

	params := make(map[string]float64, len(defaults))
	for _, d := range defaults {
		params[d.key] = d.value
	}
	for _, pair := range words[1:] {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		v, err := ParseValue(value)
		if err != nil {
			return fmt.Errorf("invalid parameter value %s: %w", pair, err)
		}
		params[strings.ToLower(key)] = v
	}

	netlistData.Models[modelName] = ModelParam{
		Type:   modelType,
		Name:   modelName,
		Params: params,
	}
	return nil
}

// modelTokens renders a model as the parameter tokens of its device.
func modelTokens(model ModelParam) []string {
	var tokens []string
	if model.Type != "D" {
		tokens = append(tokens, strings.ToLower(model.Type))
	}
	for _, d := range modelDefaults[model.Type] {
		tokens = append(tokens, strconv.FormatFloat(model.Params[d.key], 'g', -1, 64))
	}
	return tokens
}

// resolveModels replaces a diode's or transistor's model reference with its
// parameter tokens.
func resolveModels(netlistData *NetlistData) error {
	for i := range netlistData.Elements {
		elem := &netlistData.Elements[i]
		if (elem.Type != "D" && elem.Type != "Q") || len(elem.Tokens) == 0 {
			continue
		}
		ref := elem.Tokens[0]
		if _, err := strconv.ParseFloat(ref, 64); err == nil || ref == "npn" || ref == "pnp" {
			continue
		}
		model, ok := netlistData.Models[ref]
		if !ok {
			return fmt.Errorf("element %s: unknown model %s", elem.Name, ref)
		}
		if (elem.Type == "D") != (model.Type == "D") {
			return fmt.Errorf("element %s: model %s is %s", elem.Name, ref, model.Type)
		}
		elem.Tokens = modelTokens(model)
	}
	return nil
}

func parseElement(line string) (*Element, error) {
	line = strings.ReplaceAll(line, "(", " ")
	line = strings.ReplaceAll(line, ")", " ")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("invalid element format: %s", line)
	}

	kind := strings.ToUpper(string(fields[0][0]))
	if !strings.Contains("RVICLDMQ", kind) {
		return nil, fmt.Errorf("unsupported element type: %s", fields[0])
	}
	nodeCount := 2
	if kind == "Q" {
		nodeCount = 3
	}
	if len(fields) < 1+nodeCount {
		return nil, fmt.Errorf("invalid element format: %s", line)
	}

	elem := &Element{
		Name:  fields[0],
		Type:  kind,
		Nodes: fields[1 : 1+nodeCount],
	}
	for _, tok := range fields[1+nodeCount:] {
		elem.Tokens = append(elem.Tokens, normalizeToken(tok))
	}
	return elem, nil
}

// normalizeToken rewrites engineering values (1k, 10u) as plain floats and
// lowercases keywords. Anything else is passed through untouched.
func normalizeToken(tok string) string {
	if v, err := ParseValue(tok); err == nil {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	switch lower := strings.ToLower(tok); lower {
	case "dc", "sin", "pulse", "pwl", "npn", "pnp":
		return lower
	}
	return tok
}

// ParseValue - Parse value and factor. 1k -> 1000
func ParseValue(val string) (float64, error) {
	matches := valueRe.FindStringSubmatch(strings.TrimSpace(val))
	if matches == nil {
		return 0, fmt.Errorf("invalid value format: %s", val)
	}

	mantissa := matches[1]
	exp, scaled := unitMap[strings.ToLower(matches[2])]
	if !scaled {
		return strconv.ParseFloat(mantissa, 64)
	}

	// fold the factor into the literal so 100n parses exactly like 100e-9
	if !strings.ContainsAny(mantissa, "eE") {
		return strconv.ParseFloat(mantissa+"e"+strconv.Itoa(exp), 64)
	}
	num, err := strconv.ParseFloat(mantissa, 64)
	if err != nil {
		return 0, err
	}
	return num * math.Pow10(exp), nil
}
