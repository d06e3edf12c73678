package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const cbrEndpoint = "https://www.cbr.ru/DailyInfoWebServ/DailyInfo.asmx"

// CBRClient — клиент веб-сервиса ЦБ РФ. Ключевая ставка используется
// как база для начисления пени по просроченным платежам
type CBRClient struct {
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewCBRClient(logger *logrus.Logger) *CBRClient {
	return &CBRClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// buildSOAPRequest формирует SOAP-запрос для получения ключевой ставки за последние 30 дней
func buildSOAPRequest() string {
	fromDate := time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	toDate := time.Now().Format("2006-01-02")
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
        <soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">
            <soap12:Body>
                <KeyRate xmlns="http://web.cbr.ru/">
                    <fromDate>%s</fromDate>
                    <ToDate>%s</ToDate>
                </KeyRate>
            </soap12:Body>
        </soap12:Envelope>`, fromDate, toDate)
}

func (c *CBRClient) sendRequest(ctx context.Context, soapRequest string) ([]byte, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		cbrEndpoint,
		bytes.NewBufferString(soapRequest),
	)
	if err != nil {
		return nil, err
	}

	// Установка заголовков
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://web.cbr.ru/KeyRate")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка при выполнении HTTP-запроса: %v", err)
	}
	defer resp.Body.Close()

	// Чтение тела ответа
	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении ответа: %v", err)
	}

	return rawBody, nil
}

// parseKeyRate извлекает из XML-ответа последнее значение ключевой ставки
func parseKeyRate(rawBody []byte) (decimal.Decimal, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return decimal.Zero, fmt.Errorf("ошибка при разборе XML: %v", err)
	}

	krElements := doc.FindElements("//diffgram/KeyRate/KR")
	if len(krElements) == 0 {
		return decimal.Zero, errors.New("данные по ключевой ставке не найдены")
	}

	latestKR := krElements[0]
	rateElement := latestKR.FindElement("./Rate")
	if rateElement == nil {
		return decimal.Zero, errors.New("элемент <Rate> отсутствует в XML-ответе")
	}

	rate, err := decimal.NewFromString(rateElement.Text())
	if err != nil {
		return decimal.Zero, fmt.Errorf("ошибка при преобразовании ставки: %v", err)
	}

	return rate, nil
}

// GetKeyRate получает актуальную ключевую ставку из ЦБ РФ
func (c *CBRClient) GetKeyRate(ctx context.Context) (decimal.Decimal, error) {
	c.logger.Info("Запрос ключевой ставки в ЦБ РФ...")

	rawBody, err := c.sendRequest(ctx, buildSOAPRequest())
	if err != nil {
		c.logger.WithError(err).Error("Ошибка при отправке запроса в ЦБ РФ")
		return decimal.Zero, err
	}

	rate, err := parseKeyRate(rawBody)
	if err != nil {
		c.logger.WithError(err).Error("Ошибка при разборе XML-ответа от ЦБ РФ")
		return decimal.Zero, err
	}

	c.logger.WithField("key_rate", rate).Info("Ключевая ставка успешно получена")
	return rate, nil
}
