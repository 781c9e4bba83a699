package services

import "errors"

// Ошибки конвейера событий и реестра заказов
var (
	ErrDuplicateEvent                 = errors.New("событие уже обработано")
	ErrRateLimited                    = errors.New("превышен лимит запросов")
	ErrSenderBlocked                  = errors.New("отправитель заблокирован")
	ErrInvalidOrderTransition         = errors.New("недопустимый переход статуса заказа")
	ErrInvalidPaymentTransition       = errors.New("недопустимый переход статуса оплаты")
	ErrOrderNumberGenerationExhausted = errors.New("не удалось подобрать свободный номер заказа")
	ErrPaymentAlreadyTerminal         = errors.New("оплата уже завершена")
	ErrOrderNotFound                  = errors.New("заказ не найден")
	ErrCustomerNotFound               = errors.New("покупатель не найден")
	ErrInvalidOrder                   = errors.New("некорректный заказ")
	ErrBillingNotApplied              = errors.New("расчёт по заказу ещё не выполнен")
	ErrMenuItemUnavailable            = errors.New("позиция меню недоступна")
	ErrInvalidPeriod                  = errors.New("некорректный период")
)
