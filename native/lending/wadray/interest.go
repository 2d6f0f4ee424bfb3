package wadray

import "github.com/holiman/uint256"

// SecondsPerYear is the annualisation period for ray rates.
const SecondsPerYear = 365 * 24 * 60 * 60

var secondsPerYear = uint256.NewInt(SecondsPerYear)

// CalculateLinearInterest returns the simple interest factor accumulated by an
// annual ray rate between last and now.
func CalculateLinearInterest(rate *uint256.Int, last, now uint64) (*uint256.Int, error) {
	if now < last {
		return nil, ErrUnderflow
	}
	result, err := Mul(rate, uint256.NewInt(now-last))
	if err != nil {
		return nil, err
	}
	result.Div(result, secondsPerYear)
	return Add(Ray, result)
}

// CalculateCompoundedInterest approximates (1 + rate/SecondsPerYear)^elapsed
// with the first three terms of its binomial expansion. The result slightly
// underestimates the exact value, in the borrowers' favour.
func CalculateCompoundedInterest(rate *uint256.Int, last, now uint64) (*uint256.Int, error) {
	if now < last {
		return nil, ErrUnderflow
	}
	exp := now - last
	if exp == 0 {
		return RayOne(), nil
	}
	expMinusOne := exp - 1
	var expMinusTwo uint64
	if exp > 2 {
		expMinusTwo = exp - 2
	}

	basePowerTwo, err := RayMul(rate, rate)
	if err != nil {
		return nil, err
	}
	basePowerTwo.Div(basePowerTwo, new(uint256.Int).Mul(secondsPerYear, secondsPerYear))

	basePowerThree, err := RayMul(basePowerTwo, rate)
	if err != nil {
		return nil, err
	}
	basePowerThree.Div(basePowerThree, secondsPerYear)

	expU := uint256.NewInt(exp)
	pairs, err := Mul(expU, uint256.NewInt(expMinusOne))
	if err != nil {
		return nil, err
	}
	secondTerm, err := Mul(pairs, basePowerTwo)
	if err != nil {
		return nil, err
	}
	secondTerm.Div(secondTerm, uint256.NewInt(2))

	triples, err := Mul(pairs, uint256.NewInt(expMinusTwo))
	if err != nil {
		return nil, err
	}
	thirdTerm, err := Mul(triples, basePowerThree)
	if err != nil {
		return nil, err
	}
	thirdTerm.Div(thirdTerm, uint256.NewInt(6))

	firstTerm, err := Mul(rate, expU)
	if err != nil {
		return nil, err
	}
	firstTerm.Div(firstTerm, secondsPerYear)

	result, err := Add(Ray, firstTerm)
	if err != nil {
		return nil, err
	}
	if result, err = Add(result, secondTerm); err != nil {
		return nil, err
	}
	return Add(result, thirdTerm)
}
