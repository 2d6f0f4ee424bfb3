package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"moneymarket/crypto"
	"moneymarket/native/lending"
	"moneymarket/services/lending/eventstore"
)

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body required")
		}
		return badRequest("decode request: %v", err)
	}
	return nil
}

// acting parses the caller of a write and charges its quota.
func (s *Server) acting(value string) (crypto.Address, error) {
	caller, err := parseAccount("caller", value)
	if err != nil {
		return crypto.Address{}, err
	}
	if !s.throttle.allowAccount(caller.String()) {
		return crypto.Address{}, &requestError{status: http.StatusTooManyRequests, msg: "account quota exceeded"}
	}
	return caller, nil
}

func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	var req SupplyRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := s.acting(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	asset, err := parseAsset("asset", req.Asset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	onBehalfOf, err := parseOptionalAccount("onBehalfOf", req.OnBehalfOf, caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.Supply(caller, asset, amount, onBehalfOf); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AmountResponse{Amount: amount.Dec()})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := s.acting(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	asset, err := parseAsset("asset", req.Asset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := parseOptionalAccount("to", req.To, caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	withdrawn, err := s.engine.Withdraw(caller, asset, amount, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AmountResponse{Amount: decimal(withdrawn)})
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var req BorrowRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := s.acting(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	asset, err := parseAsset("asset", req.Asset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	onBehalfOf, err := parseOptionalAccount("onBehalfOf", req.OnBehalfOf, caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.Borrow(caller, asset, amount, onBehalfOf); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AmountResponse{Amount: amount.Dec()})
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	var req RepayRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := s.acting(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	asset, err := parseAsset("asset", req.Asset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	onBehalfOf, err := parseOptionalAccount("onBehalfOf", req.OnBehalfOf, caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	repaid, err := s.engine.Repay(caller, asset, amount, onBehalfOf, req.UseReceiptTokens)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AmountResponse{Amount: decimal(repaid)})
}

func (s *Server) handleCollateral(w http.ResponseWriter, r *http.Request) {
	var req CollateralRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := s.acting(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	asset, err := parseAsset("asset", req.Asset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.SetUserUseReserveAsCollateral(caller, asset, req.Enabled); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (s *Server) handleUserEMode(w http.ResponseWriter, r *http.Request) {
	var req UserEModeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := s.acting(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.SetUserEMode(caller, req.CategoryID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (s *Server) handleLiquidation(w http.ResponseWriter, r *http.Request) {
	var req LiquidationRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := s.acting(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	collateral, err := parseAsset("collateralAsset", req.CollateralAsset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	debt, err := parseAsset("debtAsset", req.DebtAsset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := parseAccount("user", req.User)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount("debtToCover", req.DebtToCover)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.LiquidationCall(caller, collateral, debt, user, amount, req.ReceiveReceiptToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, liquidationResponse(res))
}

func (s *Server) handleMintToTreasury(w http.ResponseWriter, r *http.Request) {
	var req MintToTreasuryRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var assets []crypto.Address
	if len(req.Assets) == 0 {
		listed, err := s.engine.ReservesList()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		assets = listed
	}
	for i, raw := range req.Assets {
		asset, err := parseAsset(fmt.Sprintf("assets[%d]", i), raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		assets = append(assets, asset)
	}
	minted, err := s.engine.MintToTreasury(assets...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := MintResponse{Minted: make(map[string]string, len(minted))}
	for asset, amount := range minted {
		out.Minted[asset] = decimal(amount)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePublishPrice(w http.ResponseWriter, r *http.Request) {
	if s.prices == nil {
		s.writeError(w, r, notFound("price feed not configured"))
		return
	}
	var req PriceRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	asset, err := parseAsset("asset", req.Asset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	price, err := uint256.FromDecimal(strings.TrimSpace(req.Price))
	if err != nil {
		s.writeError(w, r, badRequest("price: invalid amount %q", req.Price))
		return
	}
	ts := s.clock()
	if req.Timestamp > 0 {
		ts = time.Unix(req.Timestamp, 0)
	}
	if _, err := s.prices.Publish(asset, price, ts); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writePrice(w, r, asset)
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	if s.prices == nil {
		s.writeError(w, r, notFound("price feed not configured"))
		return
	}
	asset, err := parseAsset("asset", chi.URLParam(r, "asset"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writePrice(w, r, asset)
}

func (s *Server) writePrice(w http.ResponseWriter, r *http.Request, asset crypto.Address) {
	quote, err := s.prices.Quote(asset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PriceResponse{
		Asset:      asset.String(),
		Price:      decimal(quote.Price),
		AgeSeconds: quote.AgeSeconds,
		Status:     string(quote.Status),
	})
}

func (s *Server) handleListReserves(w http.ResponseWriter, r *http.Request) {
	assets, err := s.engine.ReservesList()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]ReserveView, 0, len(assets))
	for _, asset := range assets {
		data, err := s.engine.Reserve(asset)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out = append(out, reserveView(data))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetReserve(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAsset("asset", chi.URLParam(r, "asset"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := s.engine.Reserve(asset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reserveView(data))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount("account", chi.URLParam(r, "account"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.accountView(account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) accountView(account crypto.Address) (AccountView, error) {
	data, err := s.engine.CalculateUserAccountData(account)
	if err != nil {
		return AccountView{}, err
	}
	category, err := s.engine.UserEMode(account)
	if err != nil {
		return AccountView{}, err
	}
	userCfg, err := s.engine.UserConfiguration(account)
	if err != nil {
		return AccountView{}, err
	}
	isolation, err := s.engine.IsolationMode(account)
	if err != nil {
		return AccountView{}, err
	}
	siloed, err := s.engine.SiloedBorrowing(account)
	if err != nil {
		return AccountView{}, err
	}
	view := AccountView{
		Account:                     account.String(),
		TotalCollateralBase:         decimal(data.TotalCollateralBase),
		TotalDebtBase:               decimal(data.TotalDebtBase),
		AvailableBorrowsBase:        decimal(data.AvailableBorrowsBase),
		CurrentLTV:                  data.CurrentLTV,
		CurrentLiquidationThreshold: data.CurrentLiquidationThreshold,
		HealthFactor:                decimal(data.HealthFactor),
		EModeCategory:               category,
		Collateral:                  []string{},
		Borrowing:                   []string{},
	}
	if isolation.Active {
		view.IsolatedCollateral = isolation.Collateral.String()
	}
	if siloed.Active {
		view.SiloedAsset = siloed.Asset.String()
	}
	if userCfg.IsEmpty() {
		return view, nil
	}
	assets, err := s.engine.ReservesList()
	if err != nil {
		return AccountView{}, err
	}
	for _, asset := range assets {
		reserveData, err := s.engine.Reserve(asset)
		if err != nil {
			return AccountView{}, err
		}
		if userCfg.IsUsingAsCollateral(reserveData.ID) {
			view.Collateral = append(view.Collateral, asset.String())
		}
		if userCfg.IsBorrowing(reserveData.ID) {
			view.Borrowing = append(view.Borrowing, asset.String())
		}
	}
	return view, nil
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount("account", chi.URLParam(r, "account"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	asset, err := parseAsset("asset", chi.URLParam(r, "asset"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	receipt, err := s.engine.ReceiptBalance(asset, account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	debt, err := s.engine.DebtBalance(asset, account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	underlying, err := s.engine.UnderlyingBalance(asset, account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceView{
		Account:    account.String(),
		Asset:      asset.String(),
		Receipt:    decimal(receipt),
		Debt:       decimal(debt),
		Underlying: decimal(underlying),
	})
}

func (s *Server) handleGetEModeCategory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 8)
	if err != nil {
		s.writeError(w, r, badRequest("invalid emode category id"))
		return
	}
	category, err := s.engine.EModeCategory(uint8(id))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if category == nil {
		s.writeError(w, r, notFound("emode category %d not defined", id))
		return
	}
	writeJSON(w, http.StatusOK, categoryView(uint8(id), category))
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		s.writeError(w, r, notFound("event store not configured"))
		return
	}
	params := r.URL.Query()
	q := eventstore.Query{
		Type:    strings.TrimSpace(params.Get("type")),
		Asset:   strings.TrimSpace(params.Get("asset")),
		Account: strings.TrimSpace(params.Get("account")),
	}
	if raw := params.Get("after"); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.writeError(w, r, badRequest("invalid after cursor"))
			return
		}
		q.After = after
	}
	if raw := params.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, r, badRequest("invalid limit"))
			return
		}
		q.Limit = limit
	}
	records, err := s.events.List(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]EventView, 0, len(records))
	for _, record := range records {
		attrs, err := record.Decode()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out = append(out, EventView{
			ID:         record.ID.String(),
			Sequence:   record.Sequence,
			Type:       record.Type,
			Attributes: attrs,
			CreatedAt:  record.CreatedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleInitReserve(w http.ResponseWriter, r *http.Request) {
	var req InitReserveRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := s.acting(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	asset, err := parseAsset("asset", req.Asset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.engine.InitReserve(caller, lending.InitReserveInput{
		Asset:    asset,
		Decimals: req.Decimals,
		Strategy: req.Strategy.Params(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, IDResponse{ID: id})
}

func (s *Server) handleDropReserve(w http.ResponseWriter, r *http.Request) {
	var req DropReserveRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := s.acting(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	asset, err := parseAsset("asset", chi.URLParam(r, "asset"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.DropReserve(caller, asset); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (s *Server) handleConfigureReserve(w http.ResponseWriter, r *http.Request) {
	var req ConfigRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := s.acting(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	asset, err := parseAsset("asset", chi.URLParam(r, "asset"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.configureReserve(chi.URLParam(r, "parameter"), caller, asset, req); err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := s.engine.Reserve(asset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reserveView(data))
}

func (s *Server) configureReserve(parameter string, caller, asset crypto.Address, req ConfigRequest) error {
	e := s.engine
	switch parameter {
	case "active":
		return e.SetReserveActive(caller, asset, req.Enabled)
	case "freeze":
		return e.SetReserveFreeze(caller, asset, req.Enabled)
	case "pause":
		return e.SetReservePause(caller, asset, req.Enabled)
	case "borrowing":
		return e.SetReserveBorrowing(caller, asset, req.Enabled)
	case "flash-loans":
		return e.SetReserveFlashLoaning(caller, asset, req.Enabled)
	case "borrowable-in-isolation":
		return e.SetBorrowableInIsolation(caller, asset, req.Enabled)
	case "siloed-borrowing":
		return e.SetSiloedBorrowing(caller, asset, req.Enabled)
	case "collateral":
		return e.ConfigureReserveAsCollateral(caller, asset, req.LTV, req.LiquidationThreshold, req.LiquidationBonus)
	case "reserve-factor":
		v, err := uint16Value(req.Value)
		if err != nil {
			return err
		}
		return e.SetReserveFactor(caller, asset, v)
	case "liquidation-protocol-fee":
		v, err := uint16Value(req.Value)
		if err != nil {
			return err
		}
		return e.SetLiquidationProtocolFee(caller, asset, v)
	case "borrow-cap":
		return e.SetBorrowCap(caller, asset, req.Value)
	case "supply-cap":
		return e.SetSupplyCap(caller, asset, req.Value)
	case "debt-ceiling":
		return e.SetDebtCeiling(caller, asset, req.Value)
	case "unbacked-mint-cap":
		return e.SetUnbackedMintCap(caller, asset, req.Value)
	case "emode-category":
		if req.Value > math.MaxUint8 {
			return badRequest("value out of range")
		}
		return e.SetAssetEModeCategory(caller, asset, uint8(req.Value))
	case "strategy":
		if req.Strategy == nil {
			return badRequest("strategy is required")
		}
		return e.SetReserveInterestRateStrategy(caller, asset, req.Strategy.Params())
	default:
		return notFound("unknown reserve parameter %q", parameter)
	}
}

func uint16Value(v uint64) (uint16, error) {
	if v > math.MaxUint16 {
		return 0, badRequest("value out of range")
	}
	return uint16(v), nil
}

func (s *Server) handleSetEModeCategory(w http.ResponseWriter, r *http.Request) {
	var req EModeCategoryRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := s.acting(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var source crypto.Address
	if strings.TrimSpace(req.PriceSource) != "" {
		if source, err = parseAsset("priceSource", req.PriceSource); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	err = s.engine.SetEModeCategory(caller, lending.EModeCategoryInput{
		ID:                   req.ID,
		LTV:                  req.LTV,
		LiquidationThreshold: req.LiquidationThreshold,
		LiquidationBonus:     req.LiquidationBonus,
		PriceSource:          source,
		Label:                req.Label,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	category, err := s.engine.EModeCategory(req.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categoryView(req.ID, category))
}

func (s *Server) handlePoolPause(w http.ResponseWriter, r *http.Request) {
	var req PoolPauseRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := s.acting(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.SetPoolPause(caller, req.Paused); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}
