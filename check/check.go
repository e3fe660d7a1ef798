package check

import (
	"bytes"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/exograd/go-influxdb/jsonpointer"
)

// Checker collects validation errors while walking a configuration tree.
// Tokens are either strings (object members) or integers (array indexes).
type Checker struct {
	Pointer jsonpointer.Pointer
	Errors  ValidationErrors
}

type Object interface {
	Check(*Checker)
}

type ValidationError struct {
	Pointer jsonpointer.Pointer `json:"pointer"`
	Message string              `json:"message"`
}

type ValidationErrors []*ValidationError

func (err ValidationError) String() string {
	return fmt.Sprintf("ValidationError{%v, %q}", err.Pointer, err.Message)
}

func (err ValidationError) GoString() string {
	return err.String()
}

func (err ValidationError) Error() string {
	if len(err.Pointer) == 0 {
		return err.Message
	}

	return fmt.Sprintf("%v: %s", err.Pointer, err.Message)
}

func (errs ValidationErrors) Error() string {
	var buf bytes.Buffer

	for i, err := range errs {
		if i > 0 {
			buf.WriteString("; ")
		}

		buf.WriteString(err.Error())
	}

	return buf.String()
}

func NewChecker() *Checker {
	return &Checker{}
}

// Validate checks an object and returns its validation errors as a
// ValidationErrors value, or nil if the object is valid.
func Validate(obj Object) error {
	c := NewChecker()
	obj.Check(c)
	return c.Error()
}

func (c *Checker) Error() error {
	if len(c.Errors) == 0 {
		return nil
	}

	return c.Errors
}

func (c *Checker) WithChild(token interface{}, fn func()) {
	c.Pointer = append(c.Pointer, tokenString(token))
	defer func() {
		c.Pointer = c.Pointer[:len(c.Pointer)-1]
	}()

	fn()
}

func (c *Checker) AddError(token interface{}, format string, args ...interface{}) {
	pointer := make(jsonpointer.Pointer, len(c.Pointer), len(c.Pointer)+1)
	copy(pointer, c.Pointer)
	pointer.Append(tokenString(token))

	c.Errors = append(c.Errors, &ValidationError{
		Pointer: pointer,
		Message: fmt.Sprintf(format, args...),
	})
}

func (c *Checker) Check(token interface{}, v bool, format string, args ...interface{}) bool {
	if !v {
		c.AddError(token, format, args...)
	}

	return v
}

func (c *Checker) CheckIntMin(token interface{}, i, min int) bool {
	return c.Check(token, i >= min,
		"integer %d must be greater or equal to %d", i, min)
}

func (c *Checker) CheckStringNotEmpty(token interface{}, s string) bool {
	return c.Check(token, s != "", "string must not be empty")
}

// CheckStringValue checks that a value whose underlying type is string is one
// of the elements of values, a slice of the same kind.
func (c *Checker) CheckStringValue(token interface{}, value interface{}, values interface{}) bool {
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.String {
		panicf("value %#v (%T) is not a string", value, value)
	}

	vs := reflect.ValueOf(values)
	if vs.Kind() != reflect.Slice || vs.Type().Elem().Kind() != reflect.String {
		panicf("values %#v (%T) are not a slice of strings", values, values)
	}

	names := make([]string, vs.Len())
	for i := 0; i < vs.Len(); i++ {
		names[i] = vs.Index(i).String()
		if names[i] == v.String() {
			return true
		}
	}

	c.AddError(token, "value must be one of the following strings: %s",
		strings.Join(names, ", "))

	return false
}

// CheckStringURI checks that a string is an absolute http or https URI.
func (c *Checker) CheckStringURI(token interface{}, s string) bool {
	uri, err := url.Parse(s)
	if err != nil || uri.Host == "" {
		c.AddError(token, "string must be a valid uri")
		return false
	}

	if uri.Scheme != "http" && uri.Scheme != "https" {
		c.AddError(token, "uri scheme must be either http or https")
		return false
	}

	return true
}

func (c *Checker) CheckOptionalObject(token interface{}, value interface{}) bool {
	if isNilObject(value) {
		return true
	}

	return c.doCheckObject(token, value)
}

func (c *Checker) CheckObject(token interface{}, value interface{}) bool {
	if !c.Check(token, !isNilObject(value), "missing value") {
		return false
	}

	return c.doCheckObject(token, value)
}

func (c *Checker) doCheckObject(token interface{}, value interface{}) bool {
	obj, ok := value.(Object)
	if !ok {
		panicf("value %#v (%T) does not implement Object", value, value)
	}

	nbErrors := len(c.Errors)

	c.WithChild(token, func() {
		obj.Check(c)
	})

	return len(c.Errors) == nbErrors
}

func isNilObject(value interface{}) bool {
	if value == nil {
		return true
	}

	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Pointer || v.Type().Elem().Kind() != reflect.Struct {
		panicf("value %#v (%T) is not an object pointer", value, value)
	}

	return v.IsNil()
}

func tokenString(token interface{}) string {
	switch v := token.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	default:
		panicf("invalid token %#v (%T)", token, token)
		return ""
	}
}

func panicf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}
