package parser

import "sheets/token"

type ParseError struct {
	Message string
	Token   token.Token
}

func (e ParseError) Error() string {
	return e.Message
}
