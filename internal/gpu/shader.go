package gpu

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// ShaderError reports a failed compile or link with the driver's info log.
type ShaderError struct {
	Program string
	// Stage is "vertex", "fragment" or "link".
	Stage string
	// Lines holds the info log, one diagnostic per entry. Diagnostics that
	// name a source line are followed by that line.
	Lines []string
}

func (e *ShaderError) Error() string {
	if len(e.Lines) == 0 {
		return fmt.Sprintf("%s program: %s failed", e.Program, e.Stage)
	}
	return fmt.Sprintf("%s program: %s failed:\n\t%s", e.Program, e.Stage, strings.Join(e.Lines, "\n\t"))
}

type shaderStage struct {
	kind   uint32
	name   string
	source string
}

// CompileProgram compiles and links the stages of the program called name.
// Stage objects are deleted once linked.
func CompileProgram(name, vertexSrc, fragmentSrc string) (uint32, error) {
	stages := []shaderStage{
		{gl.VERTEX_SHADER, "vertex", vertexSrc},
		{gl.FRAGMENT_SHADER, "fragment", fragmentSrc},
	}

	program := gl.CreateProgram()
	for _, st := range stages {
		shader, err := compileStage(name, st)
		if err != nil {
			gl.DeleteProgram(program)
			return 0, err
		}
		gl.AttachShader(program, shader)
		// Flagged for deletion; freed when the program is.
		gl.DeleteShader(shader)
	}
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &n)
		raw := make([]byte, n+1)
		gl.GetProgramInfoLog(program, n, nil, &raw[0])
		gl.DeleteProgram(program)
		return 0, &ShaderError{Program: name, Stage: "link", Lines: infoLogLines(raw, "")}
	}
	return program, nil
}

func compileStage(program string, st shaderStage) (uint32, error) {
	shader := gl.CreateShader(st.kind)
	src, free := gl.Strs(st.source + "\x00")
	gl.ShaderSource(shader, 1, src, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &n)
		raw := make([]byte, n+1)
		gl.GetShaderInfoLog(shader, n, nil, &raw[0])
		gl.DeleteShader(shader)
		return 0, &ShaderError{Program: program, Stage: st.name, Lines: infoLogLines(raw, st.source)}
	}
	return shader, nil
}

// sourceRef matches the line reference drivers put in front of a diagnostic:
// "0(42)" (NVIDIA), "0:42" (Mesa, AMD, Apple).
var sourceRef = regexp.MustCompile(`\b0[(:](\d+)\)?`)

// infoLogLines splits a NUL-terminated info log into diagnostics. When source
// is given, each diagnostic naming a line is followed by that source line.
func infoLogLines(raw []byte, source string) []string {
	text := strings.TrimRight(string(raw), "\x00")
	var src []string
	if source != "" {
		src = strings.Split(source, "\n")
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)

		m := sourceRef.FindStringSubmatch(line)
		if m == nil || src == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 && n <= len(src) {
			out = append(out, fmt.Sprintf("  %4d | %s", n, strings.TrimSpace(src[n-1])))
		}
	}
	return out
}

// locator looks up uniform locations and remembers the inactive ones.
type locator struct {
	program uint32
	missing []string
}

func (l *locator) uniform(name string) int32 {
	loc := gl.GetUniformLocation(l.program, gl.Str(name+"\x00"))
	if loc < 0 {
		l.missing = append(l.missing, name)
	}
	return loc
}
