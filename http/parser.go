package http

// inputState tracks which part of the request head is being parsed.
type inputState int

const (
	inputRequestLine inputState = iota
	inputHeaders
)

// lineState tracks the CR LF terminator of the current line.
type lineState int

const (
	lineNone lineState = iota
	lineCR
	lineLF
)

// headParser is the incremental request head parser. It consumes buffered bytes
// from position up to the end of the buffer and keeps its state between reads.
type headParser struct {
	input    inputState
	line     lineState
	position int
	acc      []byte
	req      *Request
}

func (p *headParser) reset() {
	p.input = inputRequestLine
	p.line = lineNone
	p.position = 0
	p.acc = p.acc[:0]
	p.req = newRequest()
}

// process parses buf[p.position:]. It returns true once the empty line closing
// the header section has been consumed.
func (p *headParser) process(buf []byte) (bool, error) {
	for {
		line, ok := p.readLine(buf)
		if !ok {
			return false, nil
		}

		if p.input == inputRequestLine {
			if line == "" {
				// RFC 7230 3.5: ignore empty lines before the request line.
				continue
			}
			if err := p.req.parseRequestLine(line); err != nil {
				return false, err
			}
			p.input = inputHeaders
			continue
		}

		if line == "" {
			return true, nil
		}
		if err := p.req.addHeaderLine(line); err != nil {
			return false, err
		}
	}
}

// readLine scans byte by byte for CR LF. A lone CR is dropped.
func (p *headParser) readLine(buf []byte) (string, bool) {
	for p.position < len(buf) {
		b := buf[p.position]
		p.position++

		switch b {
		case '\r':
			p.line = lineCR
		case '\n':
			p.line = lineLF
		default:
			p.line = lineNone
			p.acc = append(p.acc, b)
		}

		if p.line == lineLF {
			p.line = lineNone
			line := string(p.acc)
			p.acc = p.acc[:0]
			return line, true
		}
	}
	return "", false
}
