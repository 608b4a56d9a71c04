// internal/rating/glicko2.go
package rating

import (
	"math"

	"github.com/jason-s-yu/yudh/internal/models"
)

const (
	// GlickoScale is the multiplier used for converting between Elo and Glicko2's mu.
	GlickoScale = 173.7178
	// DefaultMu is the baseline rating (1500) on the Elo scale.
	DefaultMu = 1500.0
	// DefaultPhi is the baseline rating deviation (350) on the Elo scale.
	DefaultPhi = 350.0
	// DefaultSigma is the starting volatility.
	DefaultSigma = 0.06
	// Tau is the constraint on volatility changes.
	Tau = 0.5
	// Epsilon is the tolerance used in iteration stopping conditions.
	Epsilon = 0.000001
)

// Outcome scores of a duel from the first player's point of view.
const (
	Win  = 1.0
	Draw = 0.5
	Loss = 0.0
)

// Glicko2Rating holds the transformed rating (Mu), rating deviation (Phi),
// and volatility (Sigma) for a single user in Glicko2 space.
type Glicko2Rating struct {
	Mu    float64
	Phi   float64
	Sigma float64
}

// NewGlicko2Rating converts an Elo-scale rating and deviation into Glicko2 space.
func NewGlicko2Rating(elo, rd, sigma float64) Glicko2Rating {
	return Glicko2Rating{
		Mu:    (elo - DefaultMu) / GlickoScale,
		Phi:   rd / GlickoScale,
		Sigma: sigma,
	}
}

// ToElo converts Mu back to the 1500-based scale.
func (r Glicko2Rating) ToElo() float64 {
	return r.Mu*GlickoScale + DefaultMu
}

// ratingOf reads a user's 1v1 rating. Unset deviation or volatility fall back to defaults.
func ratingOf(u models.User) Glicko2Rating {
	phi, sigma := u.Phi1v1, u.Sigma1v1
	if phi <= 0 {
		phi = DefaultPhi
	}
	if sigma <= 0 {
		sigma = DefaultSigma
	}
	return NewGlicko2Rating(float64(u.Elo1v1), phi, sigma)
}

func apply(u models.User, r Glicko2Rating) models.User {
	u.Elo1v1 = int(math.Round(r.ToElo()))
	u.Phi1v1 = r.Phi * GlickoScale
	u.Sigma1v1 = r.Sigma
	return u
}

// Duel rates a finished 1v1 match. scoreA is Win, Draw or Loss for a. Both players
// are updated against the other's rating from before the match.
func Duel(a, b models.User, scoreA float64) (models.User, models.User) {
	ra, rb := ratingOf(a), ratingOf(b)
	return apply(a, updateGlicko(ra, rb, scoreA)), apply(b, updateGlicko(rb, ra, 1-scoreA))
}

// updateGlicko performs a single-match Glicko2 update with volatility for a user r
// against an opponent rOpp, given the final score in [0..1].
func updateGlicko(r, rOpp Glicko2Rating, score float64) Glicko2Rating {
	gVal := g(rOpp.Phi)
	EVal := E(r.Mu, rOpp.Mu, rOpp.Phi)

	v := 1.0 / (gVal * gVal * EVal * (1 - EVal))
	delta := v * gVal * (score - EVal)

	a := math.Log(r.Sigma * r.Sigma)
	A := a
	var B float64
	if delta*delta > r.Phi*r.Phi+v {
		B = math.Log(delta*delta - r.Phi*r.Phi - v)
	} else {
		k := 1.0
		for f(a-k*Tau, r.Phi, v, delta, a) < 0 {
			k++
		}
		B = a - k*Tau
	}

	// Illinois variant of regula falsi on the volatility function.
	fA, fB := f(A, r.Phi, v, delta, a), f(B, r.Phi, v, delta, a)
	for i := 0; i < 100 && math.Abs(B-A) > Epsilon; i++ {
		C := A + (A-B)*fA/(fB-fA)
		fC := f(C, r.Phi, v, delta, a)
		if fC*fB <= 0 {
			A, fA = B, fB
		} else {
			fA /= 2
		}
		B, fB = C, fC
	}

	newSigma := math.Exp(A / 2)
	phiStar := math.Sqrt(r.Phi*r.Phi + newSigma*newSigma)
	phiPrime := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	muPrime := r.Mu + phiPrime*phiPrime*gVal*(score-EVal)

	return Glicko2Rating{
		Mu:    muPrime,
		Phi:   phiPrime,
		Sigma: newSigma,
	}
}

// g is the G(phi) factor from Glicko2, applying the standard formula 1/sqrt(1+3phi^2/pi^2).
func g(phi float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*phi*phi/math.Pi/math.Pi)
}

// E is the expected score formula in Glicko2 space, E(mu,mu2,phi2)=1/(1+exp[-g(phi2)*(mu-mu2)])
func E(mu, mu2, phi2 float64) float64 {
	return 1.0 / (1.0 + math.Exp(-g(phi2)*(mu-mu2)))
}

// f is the Glicko2 volatility root-finding function.
func f(x, phi, v, delta, a float64) float64 {
	ex := math.Exp(x)
	num := ex * (delta*delta - phi*phi - v - ex)
	den := 2.0 * (phi*phi + v + ex) * (phi*phi + v + ex)
	return (num / den) - ((x - a) / (Tau * Tau))
}
