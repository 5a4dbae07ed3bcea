package engine

import "errors"

// ErrInvalidInput возвращается при некорректных или выходящих за допустимый
// диапазон аргументах (вина вызывающей стороны, на HTTP-границе — 4xx).
var (
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidState возвращается, если операция недопустима в текущем
	// состоянии жизненного цикла, например оплата отменённого счёта.
	ErrInvalidState = errors.New("invalid state")
	// ErrIntegrity возвращается при нарушении уникальности или
	// согласованности, например при дубликате номера счёта. Движок не
	// повторяет операцию сам.
	ErrIntegrity = errors.New("integrity violation")
)
